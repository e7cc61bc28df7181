package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Calibration records a completed calibration.
type Calibration struct {
	ID              string
	BaselineX       float64
	BaselineY       float64
	LeftThreshold   float64
	RightThreshold  float64
	SmoothingWindow int
	Samples         int
	Restarts        int
	CreatedAt       time.Time
}

// CalibrationRepository provides access to calibration records.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Create inserts a calibration, assigning an ID when empty.
func (r *CalibrationRepository) Create(c *Calibration) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO calibrations (id, baseline_x, baseline_y, left_threshold, right_threshold,
			smoothing_window, samples, restarts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BaselineX, c.BaselineY, c.LeftThreshold, c.RightThreshold,
		c.SmoothingWindow, c.Samples, c.Restarts, c.CreatedAt,
	)
	return err
}

// Latest returns the most recent calibration.
func (r *CalibrationRepository) Latest() (*Calibration, error) {
	c := &Calibration{}
	err := r.db.QueryRow(
		`SELECT id, baseline_x, baseline_y, left_threshold, right_threshold,
			smoothing_window, samples, restarts, created_at
		 FROM calibrations ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&c.ID, &c.BaselineX, &c.BaselineY, &c.LeftThreshold, &c.RightThreshold,
		&c.SmoothingWindow, &c.Samples, &c.Restarts, &c.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return c, nil
}

// List returns all calibrations, most recent first.
func (r *CalibrationRepository) List() ([]*Calibration, error) {
	rows, err := r.db.Query(
		`SELECT id, baseline_x, baseline_y, left_threshold, right_threshold,
			smoothing_window, samples, restarts, created_at
		 FROM calibrations ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calibrations []*Calibration
	for rows.Next() {
		c := &Calibration{}
		err := rows.Scan(&c.ID, &c.BaselineX, &c.BaselineY, &c.LeftThreshold, &c.RightThreshold,
			&c.SmoothingWindow, &c.Samples, &c.Restarts, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		calibrations = append(calibrations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return calibrations, nil
}
