// Package intent debounces normalized face signals into discrete game commands.
package intent

import (
	"fmt"
	"strings"
)

// Kind is the class of an Intent.
type Kind int

const (
	None Kind = iota
	CursorStep
	Commit
	Reset
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case CursorStep:
		return "step"
	case Commit:
		return "commit"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Axis is a cursor movement axis.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

func (a Axis) String() string {
	if a == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Direction is the direction of a CursorStep.
type Direction int

const (
	NoDirection Direction = iota
	Up
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return ""
	}
}

// Axis returns the axis the direction moves along.
func (d Direction) Axis() Axis {
	if d == Up || d == Down {
		return Vertical
	}
	return Horizontal
}

// Delta returns the (row, col) offset of one step in direction d.
func (d Direction) Delta() (row, col int) {
	switch d {
	case Up:
		return -1, 0
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	case Right:
		return 0, 1
	}
	return 0, 0
}

// Intent is one discrete command. Direction is only set for CursorStep.
type Intent struct {
	Kind      Kind
	Direction Direction
}

// Step returns a CursorStep intent in direction d.
func Step(d Direction) Intent {
	return Intent{Kind: CursorStep, Direction: d}
}

// Of returns a directionless intent of kind k.
func Of(k Kind) Intent {
	return Intent{Kind: k}
}

// IsNone reports whether i carries no command.
func (i Intent) IsNone() bool {
	return i.Kind == None
}

func (i Intent) String() string {
	if i.Kind == CursorStep {
		return "step:" + i.Direction.String()
	}
	return i.Kind.String()
}

// MarshalText encodes the intent as its string form, e.g. "step:left".
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (i *Intent) UnmarshalText(text []byte) error {
	s := string(text)
	switch s {
	case "", "none":
		*i = Of(None)
		return nil
	case "commit":
		*i = Of(Commit)
		return nil
	case "reset":
		*i = Of(Reset)
		return nil
	}

	dir, ok := strings.CutPrefix(s, "step:")
	if !ok {
		return fmt.Errorf("unknown intent %q", s)
	}
	for _, d := range []Direction{Up, Down, Left, Right} {
		if d.String() == dir {
			*i = Step(d)
			return nil
		}
	}
	return fmt.Errorf("unknown step direction %q", dir)
}
