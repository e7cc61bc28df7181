package signal

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func face(x, y, left, right float64) Frame {
	return Frame{Head: Vec2{X: x, Y: y}, LeftClosed: left, RightClosed: right, FaceFound: true}
}

func testCalibratorConfig() CalibratorConfig {
	cfg := DefaultCalibratorConfig()
	cfg.Window = 4
	cfg.MaxRestarts = 2
	return cfg
}

func TestCalibrator_BuildsProfile(t *testing.T) {
	c := NewCalibrator(testCalibratorConfig())

	frames := []Frame{
		face(0.10, 0.50, 0.05, 0.10),
		face(0.12, 0.52, 0.05, 0.10),
		face(0.08, 0.48, 0.05, 0.10),
		face(0.10, 0.50, 0.05, 0.10),
	}

	var profile *CalibrationProfile
	for i, f := range frames {
		p, err := c.Observe(f)
		require.NoError(t, err)
		if i < len(frames)-1 {
			assert.Nil(t, p, "profile must not be ready after %d frames", i+1)
		}
		profile = p
	}

	require.NotNil(t, profile)
	assert.InDelta(t, 0.10, profile.Baseline.X, epsilon)
	assert.InDelta(t, 0.50, profile.Baseline.Y, epsilon)
	assert.InDelta(t, 0.40, profile.LeftThreshold, epsilon)
	assert.InDelta(t, 0.45, profile.RightThreshold, epsilon)
	assert.Equal(t, 5, profile.SmoothingWindow)
	assert.Equal(t, 4, profile.Samples)
}

func TestCalibrator_SkipsNoFaceFrames(t *testing.T) {
	c := NewCalibrator(testCalibratorConfig())

	for i := 0; i < 10; i++ {
		p, err := c.Observe(NoFace(int64(i)))
		require.NoError(t, err)
		require.Nil(t, p)
	}

	collected, total := c.Progress()
	assert.Equal(t, 0, collected)
	assert.Equal(t, 4, total)
}

func TestCalibrator_ThresholdCappedForHighBaseline(t *testing.T) {
	cfg := testCalibratorConfig()
	cfg.MaxEyeThreshold = 0.6
	c := NewCalibrator(cfg)

	var profile *CalibrationProfile
	for _, f := range Repeat(face(0, 0, 0.5, 0.1), 4) {
		p, err := c.Observe(f)
		require.NoError(t, err)
		profile = p
	}

	require.NotNil(t, profile)
	assert.InDelta(t, 0.6, profile.LeftThreshold, epsilon)
	assert.InDelta(t, 0.45, profile.RightThreshold, epsilon)
}

func TestCalibrator_UnstableWindowRestarts(t *testing.T) {
	c := NewCalibrator(testCalibratorConfig())

	noisy := []Frame{
		face(-0.5, 0, 0, 0),
		face(0.5, 0, 0, 0),
		face(-0.5, 0, 0, 0),
		face(0.5, 0, 0, 0),
	}

	var lastErr error
	for _, f := range noisy {
		_, lastErr = c.Observe(f)
	}
	require.ErrorIs(t, lastErr, ErrCalibrationUnstable)
	assert.NotErrorIs(t, lastErr, ErrCalibrationAborted)
	assert.Equal(t, 1, c.Restarts())

	collected, _ := c.Progress()
	assert.Equal(t, 0, collected, "window must restart empty")

	// A calm window afterwards still succeeds.
	var profile *CalibrationProfile
	for _, f := range Repeat(face(0.2, 0.4, 0, 0), 4) {
		p, err := c.Observe(f)
		require.NoError(t, err)
		profile = p
	}
	require.NotNil(t, profile)
	assert.InDelta(t, 0.2, profile.Baseline.X, epsilon)
}

func TestCalibrator_EyeNoiseIsUnstable(t *testing.T) {
	c := NewCalibrator(testCalibratorConfig())

	var lastErr error
	for _, f := range []Frame{face(0, 0, 0, 0), face(0, 0, 1, 0), face(0, 0, 0, 0), face(0, 0, 1, 0)} {
		_, lastErr = c.Observe(f)
	}
	assert.ErrorIs(t, lastErr, ErrCalibrationUnstable)
}

func TestCalibrator_AbortsAfterMaxRestarts(t *testing.T) {
	c := NewCalibrator(testCalibratorConfig())

	noisy := []Frame{face(-1, 0, 0, 0), face(1, 0, 0, 0), face(-1, 0, 0, 0), face(1, 0, 0, 0)}

	var errs []error
	for round := 0; round < 3; round++ {
		var err error
		for _, f := range noisy {
			_, err = c.Observe(f)
		}
		errs = append(errs, err)
	}

	assert.NotErrorIs(t, errs[0], ErrCalibrationAborted)
	assert.NotErrorIs(t, errs[1], ErrCalibrationAborted)
	require.ErrorIs(t, errs[2], ErrCalibrationAborted)
	assert.ErrorIs(t, errs[2], ErrCalibrationUnstable)

	// Aborted calibrators stay aborted.
	_, err := c.Observe(face(0, 0, 0, 0))
	assert.ErrorIs(t, err, ErrCalibrationAborted)
}

func TestExtractor_SmoothsHeadPosition(t *testing.T) {
	profile := CalibrationProfile{Baseline: Vec2{X: 1, Y: 1}, LeftThreshold: 0.5, RightThreshold: 0.5, SmoothingWindow: 3}
	e := NewExtractor(profile, DefaultExtractorConfig())

	s := e.Extract(face(1.3, 1, 0, 0))
	assert.InDelta(t, 0.3, s.Displacement.X, epsilon)

	s = e.Extract(face(1.0, 1, 0, 0))
	assert.InDelta(t, 0.15, s.Displacement.X, epsilon)

	s = e.Extract(face(1.0, 1, 0, 0))
	assert.InDelta(t, 0.1, s.Displacement.X, epsilon)

	// Oldest sample (1.3) drops out of the window.
	s = e.Extract(face(1.0, 1.6, 0, 0))
	assert.InDelta(t, 0.0, s.Displacement.X, epsilon)
	assert.InDelta(t, 0.2, s.Displacement.Y, epsilon)
}

func TestExtractor_InvertX(t *testing.T) {
	profile := CalibrationProfile{SmoothingWindow: 1, LeftThreshold: 0.5, RightThreshold: 0.5}
	e := NewExtractor(profile, ExtractorConfig{MinClosureFrames: 1, InvertX: true})

	s := e.Extract(face(0.4, 0.1, 0, 0))
	assert.InDelta(t, -0.4, s.Displacement.X, epsilon)
	assert.InDelta(t, 0.1, s.Displacement.Y, epsilon)
}

func TestExtractor_EyeClosureNeedsConsecutiveFrames(t *testing.T) {
	profile := CalibrationProfile{LeftThreshold: 0.5, RightThreshold: 0.5, SmoothingWindow: 1}
	e := NewExtractor(profile, ExtractorConfig{MinClosureFrames: 2})

	s := e.Extract(face(0, 0, 0.9, 0.9))
	assert.False(t, s.LeftClosed, "single closed frame is rejected")
	assert.False(t, s.BothClosed)

	s = e.Extract(face(0, 0, 0.9, 0.9))
	assert.True(t, s.LeftClosed)
	assert.True(t, s.RightClosed)
	assert.True(t, s.BothClosed)

	s = e.Extract(face(0, 0, 0.9, 0.1))
	assert.True(t, s.LeftClosed)
	assert.False(t, s.RightClosed)
	assert.False(t, s.BothClosed)

	// A single-frame blip on the right eye is ignored.
	s = e.Extract(face(0, 0, 0.1, 0.9))
	assert.False(t, s.LeftClosed)
	assert.False(t, s.RightClosed)
}

func TestExtractor_NoFaceHoldsLastSignal(t *testing.T) {
	profile := CalibrationProfile{LeftThreshold: 0.5, RightThreshold: 0.5, SmoothingWindow: 2}
	e := NewExtractor(profile, ExtractorConfig{MinClosureFrames: 2})

	e.Extract(face(0.4, 0, 0.9, 0))
	last := e.Extract(face(0.4, 0, 0.9, 0))
	require.True(t, last.LeftClosed)

	held := e.Extract(NoFace(7))
	assert.False(t, held.FaceFound)
	assert.Equal(t, int64(7), held.Tick)
	assert.InDelta(t, last.Displacement.X, held.Displacement.X, epsilon)
	assert.True(t, held.LeftClosed)

	// The closure run was not reset by the missing frame.
	s := e.Extract(face(0.4, 0, 0.9, 0))
	assert.True(t, s.LeftClosed)
	assert.InDelta(t, 0.4, s.Displacement.X, epsilon)
}

func TestScriptedSource(t *testing.T) {
	ctx := context.Background()
	src := NewScriptedSource([]Frame{face(0, 0, 0, 0), NoFace(99), face(1, 1, 0, 0)})

	for i := 0; i < 3; i++ {
		f, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(i), f.Tick, "ticks are monotonic")
	}
	assert.Equal(t, 0, src.Remaining())

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestScriptedSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptedSource(Repeat(face(0, 0, 0, 0), 3)).Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestJSONSource(t *testing.T) {
	input := `
# neutral face
{"head": {"x": 0.1, "y": 0.5}, "face_found": true, "repeat": 2}

{"face_found": false}
{"head": {"x": 0.4, "y": 0.5}, "left_closed": 0.9, "right_closed": 0.8, "face_found": true}
`
	src := NewJSONSource(strings.NewReader(input))
	ctx := context.Background()

	var frames []Frame
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}

	require.Len(t, frames, 4)
	assert.True(t, frames[0].FaceFound)
	assert.True(t, frames[1].FaceFound)
	assert.False(t, frames[2].FaceFound)
	assert.InDelta(t, 0.9, frames[3].LeftClosed, epsilon)
	for i, f := range frames {
		assert.Equal(t, int64(i), f.Tick)
	}
}

func TestJSONSource_BadLine(t *testing.T) {
	src := NewJSONSource(strings.NewReader("{\"face_found\": true}\nnot json\n"))
	ctx := context.Background()

	_, err := src.Next(ctx)
	require.NoError(t, err)

	_, err = src.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestMeanVariance(t *testing.T) {
	mean, variance := meanVariance([]float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, mean, epsilon)
	assert.InDelta(t, 1.25, variance, epsilon)

	mean, variance = meanVariance(nil)
	assert.Zero(t, mean)
	assert.Zero(t, variance)
	assert.False(t, math.IsNaN(variance))
}
