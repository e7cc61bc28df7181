// Package signal turns per-frame face measurements into calibrated, smoothed signals.
//
// A Source yields one Frame per tick. The Calibrator consumes the first frames of a
// session to build a CalibrationProfile, and the Extractor uses that profile to convert
// every following Frame into a Signal the intent filter can threshold.
package signal

import (
	"context"
	"errors"
)

// ErrExhausted is returned by finite sources once every frame has been consumed.
var ErrExhausted = errors.New("no more frames")

// Vec2 is a 2D head position or displacement.
// Units are inter-ocular distances; X grows to the right of the (mirrored) image and
// Y grows downward.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by f.
func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

// Frame is one tick's worth of measurements from a landmark source.
// A frame with FaceFound=false is the "no face detected" sentinel; its other
// measurements are meaningless.
type Frame struct {
	Tick        int64   `json:"tick"`
	Head        Vec2    `json:"head"`
	LeftClosed  float64 `json:"left_closed"`  // closure confidence, 0 = open, 1 = closed
	RightClosed float64 `json:"right_closed"` // closure confidence, 0 = open, 1 = closed
	FaceFound   bool    `json:"face_found"`
}

// NoFace returns the sentinel frame for a tick where detection found no face.
func NoFace(tick int64) Frame {
	return Frame{Tick: tick}
}

// Source yields one Frame per tick.
// Sources are lazy and cannot be restarted; Next blocks until the next frame is due.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}
