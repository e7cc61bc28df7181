// Package session runs the per-tick pipeline: calibration, signal extraction, intent
// filtering and the game controller, for exactly one player.
package session

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/intent"
	"github.com/ayusman/nayana/internal/signal"
)

const noFaceStatus = "No face detected. Center yourself in front of the camera."

// Config configures every stage of a session.
type Config struct {
	Calibrator signal.CalibratorConfig
	Extractor  signal.ExtractorConfig
	Filter     intent.Config
	Game       game.Config
	Logger     zerolog.Logger

	// OnCalibrated is called when a calibration profile has been built.
	OnCalibrated func(profile signal.CalibrationProfile, restarts int)

	// OnRoundOver is called for every round that ends, including abandoned rounds.
	OnRoundOver func(result game.RoundResult)
}

// DefaultConfig returns the defaults of every stage.
func DefaultConfig() Config {
	return Config{
		Calibrator: signal.DefaultCalibratorConfig(),
		Extractor:  signal.DefaultExtractorConfig(),
		Filter:     intent.DefaultConfig(),
		Game:       game.DefaultConfig(),
		Logger:     zerolog.Nop(),
	}
}

// CalibrationProgress reports how far the current calibration window is.
type CalibrationProgress struct {
	Collected int `json:"collected"`
	Total     int `json:"total"`
	Restarts  int `json:"restarts"`
}

// Snapshot is the read-only view of a session after a tick.
type Snapshot struct {
	Tick int64 `json:"tick"`
	game.State

	FaceFound   bool                       `json:"face_found"`
	FaceLost    bool                       `json:"face_lost"`
	Calibration CalibrationProgress        `json:"calibration"`
	Profile     *signal.CalibrationProfile `json:"profile,omitempty"`
	LastIntent  intent.Intent              `json:"last_intent"`
}

// Session holds all mutable state of one player's game. It is not safe for concurrent
// use; one goroutine steps it and publishes copies of the snapshot.
type Session struct {
	config Config

	calibrator *signal.Calibrator
	extractor  *signal.Extractor
	filter     *intent.Filter
	controller *game.Controller
	profile    *signal.CalibrationProfile

	tick       int64
	faceFound  bool
	lastIntent intent.Intent
	err        error
}

// New creates a session in the Calibrating phase.
func New(config Config) *Session {
	return &Session{
		config:     config,
		calibrator: signal.NewCalibrator(config.Calibrator),
		controller: game.NewController(config.Game),
	}
}

// Step processes one frame and returns the resulting snapshot.
//
// The only error is a wrapped signal.ErrCalibrationAborted; once returned, every later
// Step returns it again until Recalibrate is called.
func (s *Session) Step(f signal.Frame) (Snapshot, error) {
	if s.err != nil {
		return s.Snapshot(), s.err
	}

	s.tick = f.Tick
	s.faceFound = f.FaceFound
	s.lastIntent = intent.Of(intent.None)

	// Timers start on the tick after calibration completes.
	if s.controller.Phase() == game.Calibrating {
		if err := s.calibrate(f); err != nil {
			s.err = err
			return s.Snapshot(), err
		}
	} else {
		sig := s.extractor.Extract(f)
		s.lastIntent = s.filter.Update(sig)
		s.controller.Handle(s.lastIntent)
		s.controller.Tick()
	}

	s.drainResults()

	return s.Snapshot(), nil
}

func (s *Session) calibrate(f signal.Frame) error {
	profile, err := s.calibrator.Observe(f)
	switch {
	case errors.Is(err, signal.ErrCalibrationAborted):
		s.config.Logger.Error().Err(err).Msg("calibration aborted")
		return err
	case err != nil:
		s.config.Logger.Warn().
			Err(err).
			Int("restarts", s.calibrator.Restarts()).
			Msg("calibration restarted")
		return nil
	case profile == nil:
		return nil
	}

	s.profile = profile
	s.extractor = signal.NewExtractor(*profile, s.config.Extractor)
	s.filter = intent.NewFilter(s.config.Filter)
	s.controller.Calibrated()

	s.config.Logger.Info().
		Float64("baseline_x", profile.Baseline.X).
		Float64("baseline_y", profile.Baseline.Y).
		Float64("left_threshold", profile.LeftThreshold).
		Float64("right_threshold", profile.RightThreshold).
		Int("restarts", s.calibrator.Restarts()).
		Msg("calibrated")

	if s.config.OnCalibrated != nil {
		s.config.OnCalibrated(*profile, s.calibrator.Restarts())
	}
	return nil
}

// Recalibrate abandons any round in progress and starts a new calibration window.
// It also clears an aborted calibration.
func (s *Session) Recalibrate() {
	s.controller.Recalibrate()
	s.drainResults()

	s.calibrator = signal.NewCalibrator(s.config.Calibrator)
	s.extractor = nil
	s.filter = nil
	s.profile = nil
	s.err = nil
	s.lastIntent = intent.Of(intent.None)
}

// Err returns the fatal calibration error, if any.
func (s *Session) Err() error {
	return s.err
}

// Profile returns the active calibration profile, or nil while calibrating.
func (s *Session) Profile() *signal.CalibrationProfile {
	return s.profile
}

// Snapshot returns the current state without advancing it.
func (s *Session) Snapshot() Snapshot {
	collected, total := s.calibrator.Progress()

	snap := Snapshot{
		Tick:      s.tick,
		State:     s.controller.State(),
		FaceFound: s.faceFound,
		Calibration: CalibrationProgress{
			Collected: collected,
			Total:     total,
			Restarts:  s.calibrator.Restarts(),
		},
		LastIntent: s.lastIntent,
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	if s.filter != nil {
		snap.FaceLost = s.filter.FaceLost()
	}

	switch {
	case s.err != nil:
		snap.Status = s.err.Error()
	case snap.FaceLost:
		snap.Status = noFaceStatus
	case snap.Phase == game.Calibrating && !s.faceFound && s.tick > 0:
		snap.Status = noFaceStatus
	}
	return snap
}

func (s *Session) drainResults() {
	for _, r := range s.controller.TakeResults() {
		if s.config.OnRoundOver != nil {
			s.config.OnRoundOver(r)
		}
	}
}
