package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Calibrations table - one row per completed calibration
		`CREATE TABLE IF NOT EXISTS calibrations (
			id TEXT PRIMARY KEY,
			baseline_x REAL NOT NULL,
			baseline_y REAL NOT NULL,
			left_threshold REAL NOT NULL,
			right_threshold REAL NOT NULL,
			smoothing_window INTEGER NOT NULL,
			samples INTEGER NOT NULL,
			restarts INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Rounds table - finished and abandoned rounds
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			calibration_id TEXT REFERENCES calibrations(id) ON DELETE SET NULL,
			round INTEGER NOT NULL,
			mode TEXT NOT NULL CHECK(mode IN ('vs_computer', 'two_player')),
			difficulty TEXT NOT NULL CHECK(difficulty IN ('easy', 'hard')),
			outcome TEXT NOT NULL CHECK(outcome IN ('win', 'draw', 'abandoned')),
			winner TEXT NOT NULL DEFAULT '',
			moves INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			board TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_rounds_finished_at ON rounds(finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_calibration_id ON rounds(calibration_id)`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_created_at ON calibrations(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
