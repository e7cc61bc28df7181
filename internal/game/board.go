// Package game implements the tic-tac-toe rules, the computer opponents and the round
// state machine driven by intents.
package game

import (
	"fmt"
	"strings"
)

// Size is the board width and height.
const Size = 3

// Mark is the content of a board cell.
type Mark int

const (
	Empty Mark = iota
	X
	O
)

func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other player's mark. Empty has no opponent.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	}
	return Empty
}

// MarshalText encodes a mark as "X", "O" or "".
func (m Mark) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "X", "O" or "".
func (m *Mark) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "X":
		*m = X
	case "O":
		*m = O
	case "":
		*m = Empty
	default:
		return fmt.Errorf("invalid mark %q", text)
	}
	return nil
}

// Cell addresses a board square.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether c lies on the board.
func (c Cell) Valid() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// Board is a 3x3 tic-tac-toe grid indexed [row][col].
type Board [Size][Size]Mark

// lines lists every row, column and diagonal.
var lines = [8][3]Cell{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// At returns the mark at c.
func (b Board) At(c Cell) Mark {
	return b[c.Row][c.Col]
}

// Set places m at c.
func (b *Board) Set(c Cell, m Mark) {
	b[c.Row][c.Col] = m
}

// Winner returns the mark owning a complete line together with that line.
// It returns Empty and nil when nobody has won.
func (b Board) Winner() (Mark, []Cell) {
	for _, line := range lines {
		m := b.At(line[0])
		if m != Empty && m == b.At(line[1]) && m == b.At(line[2]) {
			return m, line[:]
		}
	}
	return Empty, nil
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
	return len(b.EmptyCells()) == 0
}

// EmptyCells returns the empty cells in row-major order.
func (b Board) EmptyCells() []Cell {
	var cells []Cell
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == Empty {
				cells = append(cells, Cell{r, c})
			}
		}
	}
	return cells
}

// Count returns how many cells hold m.
func (b Board) Count(m Mark) int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == m {
				n++
			}
		}
	}
	return n
}

// String renders the board as three rows, using '.' for empty cells.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 0; c < Size; c++ {
			if b[r][c] == Empty {
				sb.WriteByte('.')
			} else {
				sb.WriteString(b[r][c].String())
			}
		}
	}
	return sb.String()
}

// ParseBoard builds a board from rows of "X", "O" and "." (or "_"), e.g.
// ParseBoard("X..", ".O.", "...").
func ParseBoard(rows ...string) (Board, error) {
	var b Board
	if len(rows) != Size {
		return b, fmt.Errorf("board needs %d rows, got %d", Size, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return b, fmt.Errorf("row %d: need %d cells, got %q", r, Size, row)
		}
		for c, ch := range row {
			switch ch {
			case 'X', 'x':
				b[r][c] = X
			case 'O', 'o':
				b[r][c] = O
			case '.', '_', ' ':
				b[r][c] = Empty
			default:
				return b, fmt.Errorf("row %d: invalid cell %q", r, ch)
			}
		}
	}
	return b, nil
}
