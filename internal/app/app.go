// Package app wires the camera, face detector, session and store into the running game.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/detector"
	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/session"
	"github.com/ayusman/nayana/internal/signal"
	"github.com/ayusman/nayana/internal/store"
)

// DefaultPreviewThreshold is the share of changed pixels, in percent, that refreshes
// the preview image.
const DefaultPreviewThreshold = 0.5

// Config holds configuration options for the application.
type Config struct {
	Session  session.Config
	Camera   capture.Config
	Detector detector.Config

	// OpenEAR is the eye aspect ratio of a fully open eye.
	OpenEAR float64

	// Mirror flips camera frames before detection so head-left moves the cursor left.
	Mirror bool

	// PreviewThreshold is the percent of changed pixels that refreshes the preview JPEG.
	PreviewThreshold float64

	Store  *store.Store
	Logger zerolog.Logger

	// OnSnapshot is called from the processing goroutine after every tick.
	OnSnapshot func(session.Snapshot)
}

// DefaultConfig returns the configuration for a local webcam.
func DefaultConfig() Config {
	return Config{
		Session:          session.DefaultConfig(),
		Camera:           capture.DefaultConfig(),
		Detector:         detector.DefaultConfig(),
		OpenEAR:          detector.DefaultOpenEAR,
		Mirror:           true,
		PreviewThreshold: DefaultPreviewThreshold,
		Logger:           zerolog.Nop(),
	}
}

// App owns the processing goroutine and everything it touches.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	changes  *capture.ChangeDetector
	session  *session.Session

	enabled       bool
	recalibrate   bool
	snapshot      session.Snapshot
	latestJPEG    []byte
	calibrationID string

	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new App. The camera, preview and detector are set up by Start, so an
// App that only replays frames through Run holds no capture resources.
func New(config Config) *App {
	a := &App{
		config:  config,
		enabled: true,
	}

	sc := config.Session
	onCalibrated, onRoundOver := sc.OnCalibrated, sc.OnRoundOver
	sc.OnCalibrated = func(p signal.CalibrationProfile, restarts int) {
		a.recordCalibration(p, restarts)
		if onCalibrated != nil {
			onCalibrated(p, restarts)
		}
	}
	sc.OnRoundOver = func(r game.RoundResult) {
		a.recordRound(r)
		if onRoundOver != nil {
			onRoundOver(r)
		}
	}
	a.session = session.New(sc)
	a.snapshot = a.session.Snapshot()

	return a
}

// SetDetector replaces the face detector, closing the previous one. Call before Start.
// Without one, Start uses MediaPipe and falls back to a mock that never finds a face.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	prev := a.detector
	a.detector = d
	a.mu.Unlock()

	if prev != nil && prev != d {
		if err := prev.Close(); err != nil {
			a.config.Logger.Error().Err(err).Msg("close detector")
		}
	}
}

func (a *App) defaultDetector() detector.Detector {
	mp, err := detector.NewMediaPipeDetector(a.config.Detector)
	if err != nil {
		a.config.Logger.Warn().Err(err).Msg("MediaPipe not available, using mock detector")
		return detector.NewMockDetector()
	}
	a.config.Logger.Info().Msg("using MediaPipe face mesh")
	return mp
}

// SetCamera replaces the camera. Call before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetEnabled pauses or resumes processing. Frames read while paused are dropped.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Recalibrate queues a recalibration, applied before the next tick.
func (a *App) Recalibrate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recalibrate = true
}

// Snapshot returns the snapshot of the latest tick.
func (a *App) Snapshot() session.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// LatestJPEG returns the latest preview frame, or nil before the first frame.
func (a *App) LatestJPEG() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latestJPEG
}

// Start opens the camera and runs the game on it until Stop or ctx ends.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(a.config.Camera)
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	if a.changes == nil {
		a.changes = capture.NewChangeDetector(a.config.PreviewThreshold)
	}
	if a.detector == nil {
		a.detector = a.defaultDetector()
	}

	src := newCameraSource(cameraSourceConfig{
		camera:   a.camera,
		detector: a.detector,
		changes:  a.changes,
		openEAR:  a.config.OpenEAR,
		mirror:   a.config.Mirror,
		logger:   a.config.Logger,
		onJPEG:   a.setLatestJPEG,
	})

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		defer src.Close()
		for {
			err := a.Run(ctx, src)
			if !errors.Is(err, signal.ErrCalibrationAborted) {
				if err != nil {
					a.config.Logger.Error().Err(err).Msg("game loop stopped")
				}
				return
			}
			a.config.Logger.Warn().Msg("waiting for recalibration")
			if !a.waitForRecalibrate(ctx) {
				return
			}
		}
	}()

	a.config.Logger.Info().Int("fps", a.camera.FPS()).Msg("game loop started")
	return nil
}

// Stop halts the game loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	a.mu.Lock()
	camera, changes, det := a.camera, a.changes, a.detector
	a.changes, a.detector = nil, nil
	a.mu.Unlock()

	if camera != nil {
		if err := camera.Close(); err != nil {
			a.config.Logger.Error().Err(err).Msg("close camera")
		}
	}
	if changes != nil {
		changes.Close()
	}
	if det != nil {
		if err := det.Close(); err != nil {
			a.config.Logger.Error().Err(err).Msg("close detector")
		}
	}

	a.config.Logger.Info().Msg("game loop stopped")
}

// waitForRecalibrate blocks until a recalibration is queued or ctx ends.
func (a *App) waitForRecalibrate(ctx context.Context) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			a.mu.RLock()
			pending := a.recalibrate
			a.mu.RUnlock()
			if pending {
				return true
			}
		}
	}
}

func (a *App) setLatestJPEG(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latestJPEG = data
}

// CalibrationID returns the store ID of the active calibration, if it was recorded.
func (a *App) CalibrationID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.calibrationID
}

func (a *App) recordCalibration(p signal.CalibrationProfile, restarts int) {
	if a.config.Store == nil {
		return
	}

	c := &store.Calibration{
		BaselineX:       p.Baseline.X,
		BaselineY:       p.Baseline.Y,
		LeftThreshold:   p.LeftThreshold,
		RightThreshold:  p.RightThreshold,
		SmoothingWindow: p.SmoothingWindow,
		Samples:         p.Samples,
		Restarts:        restarts,
	}
	if err := a.config.Store.Calibrations().Create(c); err != nil {
		a.config.Logger.Error().Err(err).Msg("record calibration")
		return
	}

	a.mu.Lock()
	a.calibrationID = c.ID
	a.mu.Unlock()
}

func (a *App) recordRound(r game.RoundResult) {
	if a.config.Store == nil {
		return
	}

	fps := a.config.Session.Game.TicksPerSecond
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	rd := &store.Round{
		CalibrationID: a.CalibrationID(),
		Round:         r.Round,
		Mode:          r.Mode.String(),
		Difficulty:    r.Difficulty.String(),
		Outcome:       r.Outcome.String(),
		Winner:        r.Winner.String(),
		Moves:         r.Moves,
		Ticks:         r.Ticks,
		Board:         strings.ReplaceAll(r.Board.String(), "\n", "/"),
	}
	rd.FinishedAt = timeNow()
	rd.StartedAt = rd.FinishedAt.Add(-ticksToDuration(r.Ticks, fps))

	if err := a.config.Store.Rounds().Create(rd); err != nil {
		a.config.Logger.Error().Err(err).Int("round", r.Round).Msg("record round")
	}
}
