package intent

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/ayusman/nayana/internal/signal"
)

// Config holds the thresholds and tick counts of the filter.
type Config struct {
	// FireHorizontal and FireVertical are the displacements that arm a cursor step.
	FireHorizontal float64
	FireVertical   float64

	// ReleaseHorizontal and ReleaseVertical bound the neutral band. Both axes must stay
	// inside it for ReleaseTicks consecutive ticks before another step can arm.
	ReleaseHorizontal float64
	ReleaseVertical   float64
	ReleaseTicks      int

	// StepCooldownTicks is the minimum spacing between two steps on the same axis.
	StepCooldownTicks int

	// CommitHoldTicks is how long both eyes must stay closed to commit.
	CommitHoldTicks     int
	CommitCooldownTicks int

	// ResetHoldTicks is how long the right eye alone must stay closed to reset.
	ResetHoldTicks     int
	ResetCooldownTicks int

	// FaceLossGraceTicks is how many consecutive no-face ticks are tolerated before
	// gesture state is dropped.
	FaceLossGraceTicks int

	Logger zerolog.Logger
}

// DefaultConfig returns the filter defaults for a 30 FPS source.
func DefaultConfig() Config {
	return Config{
		FireHorizontal:      0.25,
		FireVertical:        0.20,
		ReleaseHorizontal:   0.12,
		ReleaseVertical:     0.10,
		ReleaseTicks:        2,
		StepCooldownTicks:   6,
		CommitHoldTicks:     11,
		CommitCooldownTicks: 15,
		ResetHoldTicks:      90,
		ResetCooldownTicks:  30,
		FaceLossGraceTicks:  24,
		Logger:              zerolog.Nop(),
	}
}

// Filter turns a stream of signals into at most one Intent per tick.
//
// Cursor steps fire once per excursion: after a step the filter stays armed until both
// axes return to the neutral band. Eye gestures fire once per hold and take precedence
// over head movement. A Filter is not safe for concurrent use.
type Filter struct {
	config Config

	armed      bool
	neutralRun int
	cooldown   [2]int // indexed by Axis

	holdKind  Kind
	holdTicks int
	holdFired bool

	commitCooldown int
	resetCooldown  int

	noFaceRun int
	faceLost  bool
}

// NewFilter creates a Filter. Release bands wider than the fire thresholds are
// narrowed to the thresholds.
func NewFilter(config Config) *Filter {
	config.ReleaseHorizontal = math.Min(config.ReleaseHorizontal, config.FireHorizontal)
	config.ReleaseVertical = math.Min(config.ReleaseVertical, config.FireVertical)
	if config.ReleaseTicks < 1 {
		config.ReleaseTicks = 1
	}
	if config.CommitHoldTicks < 1 {
		config.CommitHoldTicks = 1
	}
	if config.ResetHoldTicks < 1 {
		config.ResetHoldTicks = 1
	}

	return &Filter{config: config}
}

// FaceLost reports whether the face has been missing for longer than the grace period.
func (f *Filter) FaceLost() bool {
	return f.faceLost
}

// Armed reports whether a cursor gesture is waiting for the head to return to neutral.
func (f *Filter) Armed() bool {
	return f.armed
}

// Update consumes one signal and returns the resulting intent, or an Intent of kind
// None.
//
// A signal without a face leaves every counter untouched. Once the face has been
// missing for FaceLossGraceTicks consecutive ticks the armed gesture and any eye hold
// are dropped.
func (f *Filter) Update(sig signal.Signal) Intent {
	if !sig.FaceFound {
		f.noFaceRun++
		if f.noFaceRun >= f.config.FaceLossGraceTicks && !f.faceLost {
			f.faceLost = true
			f.armed = false
			f.neutralRun = 0
			f.clearHold()
			f.config.Logger.Debug().Int64("tick", sig.Tick).Msg("face lost, gesture state cleared")
		}
		return Of(None)
	}
	f.noFaceRun = 0
	f.faceLost = false

	f.tickCooldowns()

	out := f.updateEyes(sig)
	if out.IsNone() && f.holdKind == None {
		out = f.updateCursor(sig.Displacement)
	}

	if !out.IsNone() {
		f.config.Logger.Debug().
			Int64("tick", sig.Tick).
			Stringer("intent", out).
			Msg("intent")
	}
	return out
}

func (f *Filter) tickCooldowns() {
	for i := range f.cooldown {
		if f.cooldown[i] > 0 {
			f.cooldown[i]--
		}
	}
	if f.commitCooldown > 0 {
		f.commitCooldown--
	}
	if f.resetCooldown > 0 {
		f.resetCooldown--
	}
}

// updateEyes tracks the current eye hold. Left-only closure is not a gesture.
func (f *Filter) updateEyes(sig signal.Signal) Intent {
	kind := None
	switch {
	case sig.BothClosed:
		kind = Commit
	case sig.RightClosed && !sig.LeftClosed:
		kind = Reset
	}

	if kind != f.holdKind {
		f.clearHold()
		f.holdKind = kind
	}
	if kind == None {
		return Of(None)
	}

	f.holdTicks++
	if f.holdFired {
		return Of(None)
	}

	switch kind {
	case Commit:
		if f.holdTicks >= f.config.CommitHoldTicks && f.commitCooldown == 0 {
			f.holdFired = true
			f.commitCooldown = f.config.CommitCooldownTicks
			return Of(Commit)
		}
	case Reset:
		if f.holdTicks >= f.config.ResetHoldTicks && f.resetCooldown == 0 {
			f.holdFired = true
			f.resetCooldown = f.config.ResetCooldownTicks
			return Of(Reset)
		}
	}
	return Of(None)
}

func (f *Filter) clearHold() {
	f.holdKind = None
	f.holdTicks = 0
	f.holdFired = false
}

func (f *Filter) updateCursor(d signal.Vec2) Intent {
	absX, absY := math.Abs(d.X), math.Abs(d.Y)

	if f.armed {
		if absX <= f.config.ReleaseHorizontal && absY <= f.config.ReleaseVertical {
			f.neutralRun++
			if f.neutralRun >= f.config.ReleaseTicks {
				f.armed = false
				f.neutralRun = 0
			}
		} else {
			f.neutralRun = 0
		}
		return Of(None)
	}

	overX := absX > f.config.FireHorizontal
	overY := absY > f.config.FireVertical
	if !overX && !overY {
		return Of(None)
	}

	// No diagonals: the larger displacement wins and the other axis is latched
	// with the same gesture.
	var dir Direction
	if overX && (!overY || absX >= absY) {
		dir = Right
		if d.X < 0 {
			dir = Left
		}
	} else {
		dir = Down
		if d.Y < 0 {
			dir = Up
		}
	}

	f.armed = true
	f.neutralRun = 0

	axis := dir.Axis()
	if f.cooldown[axis] > 0 {
		return Of(None)
	}
	f.cooldown[axis] = f.config.StepCooldownTicks
	return Step(dir)
}
