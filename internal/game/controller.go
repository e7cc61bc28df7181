package game

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayusman/nayana/internal/intent"
)

// Phase is the top-level state of a session.
type Phase int

const (
	Calibrating Phase = iota
	SelectingDifficulty
	Playing
	RoundOver
)

func (p Phase) String() string {
	switch p {
	case Calibrating:
		return "calibrating"
	case SelectingDifficulty:
		return "selecting_difficulty"
	case Playing:
		return "playing"
	case RoundOver:
		return "round_over"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Mode selects who places the second mark.
type Mode int

const (
	VsComputer Mode = iota
	TwoPlayer
)

func (m Mode) String() string {
	if m == TwoPlayer {
		return "two_player"
	}
	return "vs_computer"
}

// MarshalText encodes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode parses "vs_computer" (or "ai") and "two_player" (or "pvp").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vs_computer", "ai", "":
		return VsComputer, nil
	case "two_player", "pvp":
		return TwoPlayer, nil
	}
	return VsComputer, fmt.Errorf("unknown mode %q", s)
}

// Outcome is how a round ended.
type Outcome int

const (
	InProgress Outcome = iota
	Win
	Draw
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	case Abandoned:
		return "abandoned"
	default:
		return "in_progress"
	}
}

// MarshalText encodes the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Config configures a Controller. Durations are in ticks.
type Config struct {
	Mode Mode

	// Human is the mark placed by gestures in VsComputer mode. X always moves first.
	Human Mark

	// WrapCursor wraps the cursor around board edges instead of clamping it.
	WrapCursor bool

	// KeepDifficulty skips difficulty selection after the first round.
	KeepDifficulty bool

	DefaultDifficulty  Difficulty
	SelectTimeoutTicks int

	// AIDelayTicks is how long after the human's move the computer answers. Minimum 1.
	AIDelayTicks int

	// RoundOverTicks is how long a finished board stays up before the next round.
	RoundOverTicks int

	// TicksPerSecond converts countdowns to seconds in status texts.
	TicksPerSecond int

	// Strategy builds the computer opponent for a difficulty. Nil selects
	// RandomStrategy for Easy and RuleBasedStrategy for Hard.
	Strategy func(Difficulty) Strategy

	Logger zerolog.Logger
}

// DefaultConfig returns controller defaults for a 30 FPS source.
func DefaultConfig() Config {
	return Config{
		Mode:               VsComputer,
		Human:              X,
		DefaultDifficulty:  Easy,
		SelectTimeoutTicks: 150,
		AIDelayTicks:       10,
		RoundOverTicks:     150,
		TicksPerSecond:     30,
		Logger:             zerolog.Nop(),
	}
}

// DefaultStrategy returns RandomStrategy for Easy and RuleBasedStrategy for Hard.
func DefaultStrategy(d Difficulty) Strategy {
	if d == Hard {
		return RuleBasedStrategy{}
	}
	return NewRandomStrategy(nil)
}

// RoundResult summarizes a finished or abandoned round.
type RoundResult struct {
	Round      int        `json:"round"`
	Mode       Mode       `json:"mode"`
	Difficulty Difficulty `json:"difficulty"`
	Outcome    Outcome    `json:"outcome"`
	Winner     Mark       `json:"winner"`
	Moves      int        `json:"moves"`
	Ticks      int64      `json:"ticks"`
	Board      Board      `json:"board"`
}

// State is a read-only copy of the controller for renderers.
type State struct {
	Phase            Phase      `json:"phase"`
	Mode             Mode       `json:"mode"`
	Round            int        `json:"round"`
	Board            Board      `json:"board"`
	Cursor           Cell       `json:"cursor"`
	Current          Mark       `json:"current"`
	Difficulty       Difficulty `json:"difficulty"`
	DifficultyChosen bool       `json:"difficulty_chosen"`
	Highlight        Difficulty `json:"highlight"`
	SelectRemaining  int        `json:"select_remaining"`
	ResetRemaining   int        `json:"reset_remaining"`
	Outcome          Outcome    `json:"outcome"`
	Winner           Mark       `json:"winner"`
	WinLine          []Cell     `json:"win_line,omitempty"`
	Moves            int        `json:"moves"`
	Status           string     `json:"status"`
}

// Controller is the round state machine. It consumes at most one intent per tick via
// Handle, then advances its timers with Tick. It is not safe for concurrent use.
type Controller struct {
	config Config

	phase   Phase
	board   Board
	cursor  Cell
	current Mark

	difficulty Difficulty
	chosen     bool
	selector   *Selector
	strategy   Strategy

	aiTimer    int
	resetTimer int

	outcome Outcome
	winner  Mark
	winLine []Cell
	moves   int
	round   int
	ticks   int64

	notice  string
	results []RoundResult
}

// NewController creates a controller in the Calibrating phase.
func NewController(config Config) *Controller {
	if config.Human != O {
		config.Human = X
	}
	if config.AIDelayTicks < 1 {
		config.AIDelayTicks = 1
	}
	if config.RoundOverTicks < 1 {
		config.RoundOverTicks = 1
	}
	if config.TicksPerSecond < 1 {
		config.TicksPerSecond = 30
	}
	if config.Strategy == nil {
		config.Strategy = DefaultStrategy
	}

	return &Controller{
		config:  config,
		phase:   Calibrating,
		cursor:  center,
		current: X,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Calibrated leaves the Calibrating phase and starts the first round.
func (c *Controller) Calibrated() {
	if c.phase != Calibrating {
		return
	}
	c.beginRound()
	c.notice = "Calibrated. Turn your head to move, hold both eyes closed to place, close the right eye for 3s to reset."
}

// Recalibrate abandons any round in progress and returns to Calibrating.
// The difficulty is chosen again afterwards.
func (c *Controller) Recalibrate() {
	switch c.phase {
	case Playing:
		c.finish(Abandoned, Empty, nil)
	case SelectingDifficulty:
		// The round never started, so its number is reused.
		c.round--
	}
	c.clearBoard()
	c.phase = Calibrating
	c.chosen = false
	c.selector = nil
	c.notice = ""
	c.config.Logger.Info().Msg("recalibration requested")
}

// Handle applies one intent according to the current phase. Intents that do not apply
// to the phase are ignored.
func (c *Controller) Handle(in intent.Intent) {
	switch c.phase {
	case SelectingDifficulty:
		if d, locked := c.selector.Handle(in); locked {
			c.lockDifficulty(d, false)
		}

	case Playing:
		switch in.Kind {
		case intent.CursorStep:
			c.moveCursor(in.Direction)
		case intent.Commit:
			if c.humanTurn() {
				c.place(c.cursor)
			}
		case intent.Reset:
			c.finish(Abandoned, Empty, nil)
			c.beginRound()
			c.notice = strings.TrimSpace("Reset! " + c.notice)
		}

	case RoundOver:
		if in.Kind == intent.Reset {
			c.beginRound()
		}
	}
}

// Tick advances the selection countdown, the computer's move timer and the round-over
// countdown by one tick.
func (c *Controller) Tick() {
	switch c.phase {
	case SelectingDifficulty:
		if d, locked := c.selector.Tick(); locked {
			c.lockDifficulty(d, true)
		}

	case Playing:
		c.ticks++
		if c.aiTimer > 0 {
			c.aiTimer--
			if c.aiTimer == 0 {
				c.computerMove()
			}
		}

	case RoundOver:
		c.resetTimer--
		if c.resetTimer <= 0 {
			c.beginRound()
			c.notice = strings.TrimSpace("New round. " + c.notice)
		}
	}
}

// State returns a copy of the controller state.
func (c *Controller) State() State {
	s := State{
		Phase:            c.phase,
		Mode:             c.config.Mode,
		Round:            c.round,
		Board:            c.board,
		Cursor:           c.cursor,
		Current:          c.current,
		Difficulty:       c.difficulty,
		DifficultyChosen: c.chosen,
		Highlight:        c.config.DefaultDifficulty,
		Outcome:          c.outcome,
		Winner:           c.winner,
		Moves:            c.moves,
		Status:           c.status(),
	}
	if c.selector != nil && c.phase == SelectingDifficulty {
		s.Highlight = c.selector.Highlight()
		s.SelectRemaining = c.selector.Remaining()
	}
	if c.phase == RoundOver {
		s.ResetRemaining = c.resetTimer
	}
	if c.winLine != nil {
		s.WinLine = append([]Cell(nil), c.winLine...)
	}
	return s
}

// TakeResults returns the rounds that ended since the last call.
func (c *Controller) TakeResults() []RoundResult {
	results := c.results
	c.results = nil
	return results
}

func (c *Controller) clearBoard() {
	c.board = Board{}
	c.cursor = center
	c.current = X
	c.outcome = InProgress
	c.winner = Empty
	c.winLine = nil
	c.moves = 0
	c.ticks = 0
	c.aiTimer = 0
	c.resetTimer = 0
}

func (c *Controller) beginRound() {
	c.clearBoard()
	c.round++
	c.notice = ""

	if c.config.Mode == TwoPlayer || (c.config.KeepDifficulty && c.chosen) {
		c.phase = Playing
		if c.config.Mode == VsComputer {
			c.strategy = c.config.Strategy(c.difficulty)
		}
		c.config.Logger.Info().Int("round", c.round).Msg("round started")
		c.scheduleComputer()
		return
	}

	c.phase = SelectingDifficulty
	c.selector = NewSelector(c.config.DefaultDifficulty, c.config.SelectTimeoutTicks)
	c.notice = "Select difficulty."
}

func (c *Controller) lockDifficulty(d Difficulty, auto bool) {
	c.difficulty = d
	c.chosen = true
	c.strategy = c.config.Strategy(d)
	c.phase = Playing
	c.notice = fmt.Sprintf("Difficulty locked: %s. Start playing!", d)

	c.config.Logger.Info().
		Int("round", c.round).
		Stringer("difficulty", d).
		Bool("auto", auto).
		Msg("difficulty locked")

	c.scheduleComputer()
}

func (c *Controller) humanTurn() bool {
	return c.config.Mode == TwoPlayer || c.current == c.config.Human
}

// scheduleComputer arms the move timer when it is the computer's turn. The timer is
// armed during the tick that handed over the turn, so the computer moves AIDelayTicks
// ticks later.
func (c *Controller) scheduleComputer() {
	if c.phase == Playing && !c.humanTurn() {
		c.aiTimer = c.config.AIDelayTicks + 1
	}
}

func (c *Controller) moveCursor(d intent.Direction) {
	dr, dc := d.Delta()
	row, col := c.cursor.Row+dr, c.cursor.Col+dc
	if c.config.WrapCursor {
		row = (row + Size) % Size
		col = (col + Size) % Size
	} else {
		row = min(max(row, 0), Size-1)
		col = min(max(col, 0), Size-1)
	}
	c.cursor = Cell{Row: row, Col: col}
	c.notice = ""
}

// place puts the current player's mark at cell. Occupied cells are left alone and the
// turn does not change.
func (c *Controller) place(cell Cell) bool {
	if c.board.At(cell) != Empty {
		c.notice = "Cell taken. Move the cursor, then hold both eyes closed."
		return false
	}

	mark := c.current
	c.board.Set(cell, mark)
	c.moves++
	c.notice = ""

	if winner, line := c.board.Winner(); winner != Empty {
		c.finish(Win, winner, line)
		c.enterRoundOver()
		return true
	}
	if c.board.Full() {
		c.finish(Draw, Empty, nil)
		c.enterRoundOver()
		return true
	}

	c.current = mark.Opponent()
	c.scheduleComputer()
	return true
}

func (c *Controller) computerMove() {
	cell, err := c.strategy.Choose(c.board, c.current)
	if err != nil {
		// Unreachable while the board has an empty cell and no winner.
		c.config.Logger.Error().Err(err).Msg("computer move failed")
		return
	}
	c.place(cell)
}

func (c *Controller) enterRoundOver() {
	c.phase = RoundOver
	c.resetTimer = c.config.RoundOverTicks
}

// finish records the result of the current round.
func (c *Controller) finish(outcome Outcome, winner Mark, line []Cell) {
	c.outcome = outcome
	c.winner = winner
	c.winLine = line

	result := RoundResult{
		Round:      c.round,
		Mode:       c.config.Mode,
		Difficulty: c.difficulty,
		Outcome:    outcome,
		Winner:     winner,
		Moves:      c.moves,
		Ticks:      c.ticks,
		Board:      c.board,
	}
	c.results = append(c.results, result)

	c.config.Logger.Info().
		Int("round", result.Round).
		Stringer("outcome", outcome).
		Stringer("winner", winner).
		Int("moves", result.Moves).
		Msg("round finished")
}

func (c *Controller) status() string {
	seconds := func(ticks int) int {
		return (ticks + c.config.TicksPerSecond - 1) / c.config.TicksPerSecond
	}

	switch c.phase {
	case Calibrating:
		return "Calibrating: face the camera, keep your eyes open and hold still."

	case SelectingDifficulty:
		text := "Turn your head left for easy, right for hard, hold both eyes closed to confirm."
		if c.notice != "" {
			text = c.notice + " " + text
		}
		if c.selector != nil && c.selector.Remaining() > 0 {
			text += fmt.Sprintf(" Locking in %ds.", seconds(c.selector.Remaining()))
		}
		return text

	case Playing:
		if c.notice != "" {
			return c.notice
		}
		if c.config.Mode == TwoPlayer {
			return fmt.Sprintf("%s to move.", c.current)
		}
		if c.humanTurn() {
			return "Your turn."
		}
		return "Computer is thinking..."

	case RoundOver:
		var text string
		switch {
		case c.outcome == Draw:
			text = "Draw!"
		case c.config.Mode == TwoPlayer:
			text = fmt.Sprintf("%s wins!", c.winner)
		case c.winner == c.config.Human:
			text = "You win!"
		default:
			text = "Computer wins!"
		}
		return fmt.Sprintf("%s New round in %ds.", text, seconds(c.resetTimer))
	}
	return ""
}
