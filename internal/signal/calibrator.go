package signal

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrCalibrationUnstable is returned when a calibration window was too noisy.
	// The window is restarted automatically.
	ErrCalibrationUnstable = errors.New("calibration unstable")

	// ErrCalibrationAborted is returned once the restart budget is spent.
	// It is fatal to the session.
	ErrCalibrationAborted = errors.New("calibration aborted: keep your face centred, eyes open, and hold still")
)

// CalibratorConfig holds the tunables of the calibration step.
type CalibratorConfig struct {
	// Window is the number of face frames averaged into a profile.
	Window int

	// MaxRestarts is how many unstable windows are tolerated before aborting.
	MaxRestarts int

	// HeadVarianceCutoff is the largest per-axis head position variance accepted.
	HeadVarianceCutoff float64

	// EyeVarianceCutoff is the largest eye closure variance accepted, per eye.
	EyeVarianceCutoff float64

	// EyeMargin is added to the baseline closure to form the closed threshold.
	EyeMargin float64

	// MaxEyeThreshold caps the closed threshold for users whose baseline is already high.
	MaxEyeThreshold float64

	// SmoothingWindow is the head smoothing window handed to the extractor.
	SmoothingWindow int
}

// DefaultCalibratorConfig returns the calibration defaults (1.5s at 30 FPS).
func DefaultCalibratorConfig() CalibratorConfig {
	return CalibratorConfig{
		Window:             45,
		MaxRestarts:        3,
		HeadVarianceCutoff: 0.004,
		EyeVarianceCutoff:  0.05,
		EyeMargin:          0.35,
		MaxEyeThreshold:    0.8,
		SmoothingWindow:    5,
	}
}

// CalibrationProfile is the per-user baseline established at session start.
// It is immutable once built.
type CalibrationProfile struct {
	Baseline        Vec2    `json:"baseline"`
	LeftThreshold   float64 `json:"left_threshold"`
	RightThreshold  float64 `json:"right_threshold"`
	SmoothingWindow int     `json:"smoothing_window"`
	Samples         int     `json:"samples"`
}

// Calibrator accumulates the first frames of a session into a CalibrationProfile.
type Calibrator struct {
	config   CalibratorConfig
	heads    []Vec2
	left     []float64
	right    []float64
	restarts int
	aborted  error
}

// NewCalibrator creates a Calibrator. Non-positive window sizes fall back to defaults.
func NewCalibrator(config CalibratorConfig) *Calibrator {
	defaults := DefaultCalibratorConfig()
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.SmoothingWindow <= 0 {
		config.SmoothingWindow = defaults.SmoothingWindow
	}
	if config.MaxRestarts < 0 {
		config.MaxRestarts = 0
	}

	return &Calibrator{
		config: config,
		heads:  make([]Vec2, 0, config.Window),
		left:   make([]float64, 0, config.Window),
		right:  make([]float64, 0, config.Window),
	}
}

// Observe feeds one frame into the current window.
//
// It returns (nil, nil) while the window is filling, the profile once a stable window
// completes, ErrCalibrationUnstable when a window was rejected and restarted, and an
// error wrapping ErrCalibrationAborted once the restart budget is exhausted. Frames
// without a face are ignored.
func (c *Calibrator) Observe(f Frame) (*CalibrationProfile, error) {
	if c.aborted != nil {
		return nil, c.aborted
	}
	if !f.FaceFound {
		return nil, nil
	}

	c.heads = append(c.heads, f.Head)
	c.left = append(c.left, f.LeftClosed)
	c.right = append(c.right, f.RightClosed)

	if len(c.heads) < c.config.Window {
		return nil, nil
	}

	profile, err := c.compute()
	c.heads = c.heads[:0]
	c.left = c.left[:0]
	c.right = c.right[:0]

	if err != nil {
		c.restarts++
		if c.restarts > c.config.MaxRestarts {
			c.aborted = fmt.Errorf("%w (after %d restarts): %w", ErrCalibrationAborted, c.config.MaxRestarts, err)
			return nil, c.aborted
		}
		return nil, err
	}

	return profile, nil
}

// Progress returns how many frames the current window holds and how many it needs.
func (c *Calibrator) Progress() (collected, total int) {
	return len(c.heads), c.config.Window
}

// Restarts returns how many windows were rejected so far.
func (c *Calibrator) Restarts() int {
	return c.restarts
}

func (c *Calibrator) compute() (*CalibrationProfile, error) {
	xs := make([]float64, len(c.heads))
	ys := make([]float64, len(c.heads))
	for i, h := range c.heads {
		xs[i] = h.X
		ys[i] = h.Y
	}

	meanX, varX := meanVariance(xs)
	meanY, varY := meanVariance(ys)
	if varX > c.config.HeadVarianceCutoff || varY > c.config.HeadVarianceCutoff {
		return nil, fmt.Errorf("%w: head variance (%.4f, %.4f) exceeds %.4f",
			ErrCalibrationUnstable, varX, varY, c.config.HeadVarianceCutoff)
	}

	meanL, varL := meanVariance(c.left)
	meanR, varR := meanVariance(c.right)
	if varL > c.config.EyeVarianceCutoff || varR > c.config.EyeVarianceCutoff {
		return nil, fmt.Errorf("%w: eye variance (%.4f, %.4f) exceeds %.4f",
			ErrCalibrationUnstable, varL, varR, c.config.EyeVarianceCutoff)
	}

	return &CalibrationProfile{
		Baseline:        Vec2{X: meanX, Y: meanY},
		LeftThreshold:   c.eyeThreshold(meanL),
		RightThreshold:  c.eyeThreshold(meanR),
		SmoothingWindow: c.config.SmoothingWindow,
		Samples:         len(c.heads),
	}, nil
}

func (c *Calibrator) eyeThreshold(baseline float64) float64 {
	threshold := baseline + c.config.EyeMargin
	if c.config.MaxEyeThreshold > 0 {
		threshold = math.Min(threshold, c.config.MaxEyeThreshold)
	}
	return threshold
}

// meanVariance returns the mean and population variance of values.
func meanVariance(values []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}

	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return mean, variance
}
