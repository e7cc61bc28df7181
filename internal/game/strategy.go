package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrNoLegalMove is returned by a Strategy when the board has no empty cell.
var ErrNoLegalMove = errors.New("no legal move")

// Strategy picks the computer's next move.
type Strategy interface {
	Choose(b Board, player Mark) (Cell, error)
}

// Difficulty selects which Strategy the computer plays.
type Difficulty int

const (
	Easy Difficulty = iota
	Hard
)

func (d Difficulty) String() string {
	if d == Hard {
		return "hard"
	}
	return "easy"
}

// MarshalText encodes d as "easy" or "hard".
func (d Difficulty) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses "easy" or "hard".
func (d *Difficulty) UnmarshalText(text []byte) error {
	parsed, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDifficulty parses a difficulty name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "hard":
		return Hard, nil
	}
	return Easy, fmt.Errorf("unknown difficulty %q", s)
}

// RandomStrategy plays a uniformly random empty cell.
type RandomStrategy struct {
	rng *rand.Rand
}

// NewRandomStrategy creates a RandomStrategy. A nil rng uses a randomly seeded source.
func NewRandomStrategy(rng *rand.Rand) *RandomStrategy {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomStrategy{rng: rng}
}

// Choose returns a random empty cell.
func (s *RandomStrategy) Choose(b Board, _ Mark) (Cell, error) {
	cells := b.EmptyCells()
	if len(cells) == 0 {
		return Cell{}, ErrNoLegalMove
	}
	return cells[s.rng.IntN(len(cells))], nil
}

var (
	corners = []Cell{{0, 0}, {0, 2}, {2, 0}, {2, 2}}
	edges   = []Cell{{0, 1}, {1, 0}, {1, 2}, {2, 1}}
	center  = Cell{1, 1}
)

// RuleBasedStrategy plays a fixed priority policy: win, block, center, corner, edge.
// It is deterministic and does not look ahead for forks.
type RuleBasedStrategy struct{}

// Choose returns the first cell the policy selects.
func (RuleBasedStrategy) Choose(b Board, player Mark) (Cell, error) {
	if b.Full() {
		return Cell{}, ErrNoLegalMove
	}

	if c, ok := completingMove(b, player); ok {
		return c, nil
	}
	if c, ok := completingMove(b, player.Opponent()); ok {
		return c, nil
	}
	if b.At(center) == Empty {
		return center, nil
	}
	for _, c := range corners {
		if b.At(c) == Empty {
			return c, nil
		}
	}
	for _, c := range edges {
		if b.At(c) == Empty {
			return c, nil
		}
	}
	return Cell{}, ErrNoLegalMove
}

// completingMove finds an empty cell that would give m a full line, scanning cells in
// row-major order.
func completingMove(b Board, m Mark) (Cell, bool) {
	for _, c := range b.EmptyCells() {
		b.Set(c, m)
		winner, _ := b.Winner()
		b.Set(c, Empty)
		if winner == m {
			return c, true
		}
	}
	return Cell{}, false
}

// ScriptedStrategy replays a fixed list of preferred cells, skipping occupied ones.
// It is used for reproducible demos and tests.
type ScriptedStrategy struct {
	Cells []Cell
}

// Choose returns the first listed cell that is still empty, falling back to the first
// empty cell on the board.
func (s *ScriptedStrategy) Choose(b Board, _ Mark) (Cell, error) {
	for _, c := range s.Cells {
		if c.Valid() && b.At(c) == Empty {
			return c, nil
		}
	}
	cells := b.EmptyCells()
	if len(cells) == 0 {
		return Cell{}, ErrNoLegalMove
	}
	return cells[0], nil
}
