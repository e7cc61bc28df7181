package game

import "github.com/ayusman/nayana/internal/intent"

// Selector is the pre-round difficulty picker. Head left highlights Easy, head right
// highlights Hard, and a commit or the countdown locks the highlight.
type Selector struct {
	highlight Difficulty
	remaining int
	locked    bool
}

// NewSelector creates a selector highlighting def that auto-locks after timeoutTicks.
// A non-positive timeout disables auto-locking.
func NewSelector(def Difficulty, timeoutTicks int) *Selector {
	return &Selector{highlight: def, remaining: timeoutTicks}
}

// Handle applies an intent and reports whether the choice is now locked.
func (s *Selector) Handle(in intent.Intent) (Difficulty, bool) {
	if s.locked {
		return s.highlight, true
	}

	switch in.Kind {
	case intent.CursorStep:
		switch in.Direction {
		case intent.Left:
			s.highlight = Easy
		case intent.Right:
			s.highlight = Hard
		}
	case intent.Commit:
		s.locked = true
	}
	return s.highlight, s.locked
}

// Tick advances the countdown and reports whether the choice is now locked.
func (s *Selector) Tick() (Difficulty, bool) {
	if s.locked || s.remaining <= 0 {
		return s.highlight, s.locked
	}
	s.remaining--
	if s.remaining == 0 {
		s.locked = true
	}
	return s.highlight, s.locked
}

// Highlight returns the currently highlighted difficulty.
func (s *Selector) Highlight() Difficulty {
	return s.highlight
}

// Remaining returns the ticks left before the highlight auto-locks.
func (s *Selector) Remaining() int {
	return s.remaining
}
