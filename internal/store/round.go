package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Round is one played round as stored in the history.
type Round struct {
	ID            string    `json:"id"`
	CalibrationID string    `json:"calibration_id,omitempty"`
	Round         int       `json:"round"`
	Mode          string    `json:"mode"`
	Difficulty    string    `json:"difficulty"`
	Outcome       string    `json:"outcome"`
	Winner        string    `json:"winner,omitempty"`
	Moves         int       `json:"moves"`
	Ticks         int64     `json:"ticks"`
	Board         string    `json:"board"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// RoundStats summarises the round history.
type RoundStats struct {
	Total     int `json:"total"`
	XWins     int `json:"x_wins"`
	OWins     int `json:"o_wins"`
	Draws     int `json:"draws"`
	Abandoned int `json:"abandoned"`
}

// RoundRepository provides access to the round history.
type RoundRepository struct {
	db *sql.DB
}

// Rounds returns the round repository for this store.
func (s *Store) Rounds() *RoundRepository {
	return &RoundRepository{db: s.db}
}

const roundColumns = `id, COALESCE(calibration_id, ''), round, mode, difficulty, outcome, winner,
	moves, ticks, board, started_at, finished_at`

// Create inserts a round. An empty ID is replaced with a new UUID, a zero FinishedAt
// with the current time and a zero StartedAt with FinishedAt.
func (r *RoundRepository) Create(rd *Round) error {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	if rd.FinishedAt.IsZero() {
		rd.FinishedAt = time.Now()
	}
	if rd.StartedAt.IsZero() {
		rd.StartedAt = rd.FinishedAt
	}

	var calibrationID sql.NullString
	if rd.CalibrationID != "" {
		calibrationID = sql.NullString{String: rd.CalibrationID, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO rounds (id, calibration_id, round, mode, difficulty, outcome, winner,
			moves, ticks, board, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rd.ID, calibrationID, rd.Round, rd.Mode, rd.Difficulty, rd.Outcome, rd.Winner,
		rd.Moves, rd.Ticks, rd.Board, rd.StartedAt, rd.FinishedAt,
	)
	return err
}

// GetByID retrieves a round by its ID.
func (r *RoundRepository) GetByID(id string) (*Round, error) {
	rd, err := scanRound(r.db.QueryRow(`SELECT `+roundColumns+` FROM rounds WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rd, nil
}

// List returns the most recent rounds first. A limit of zero or less returns all rounds.
func (r *RoundRepository) List(limit int) ([]*Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY finished_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rounds, nil
}

// Delete removes a round by its ID.
func (r *RoundRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM rounds WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}

// Stats counts rounds by outcome and winner.
func (r *RoundRepository) Stats() (RoundStats, error) {
	var stats RoundStats
	err := r.db.QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'win' AND winner = 'X' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'win' AND winner = 'O' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'draw' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'abandoned' THEN 1 ELSE 0 END), 0)
		 FROM rounds`,
	).Scan(&stats.Total, &stats.XWins, &stats.OWins, &stats.Draws, &stats.Abandoned)
	return stats, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*Round, error) {
	rd := &Round{}
	err := row.Scan(&rd.ID, &rd.CalibrationID, &rd.Round, &rd.Mode, &rd.Difficulty, &rd.Outcome,
		&rd.Winner, &rd.Moves, &rd.Ticks, &rd.Board, &rd.StartedAt, &rd.FinishedAt)
	if err != nil {
		return nil, err
	}
	return rd, nil
}
