package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/intent"
	"github.com/ayusman/nayana/internal/signal"
)

// script builds frame sequences from gestures.
type script struct {
	frames []signal.Frame
}

func (s *script) face(x, y, eyes float64, n int) *script {
	f := signal.Frame{Head: signal.Vec2{X: x, Y: y}, LeftClosed: eyes, RightClosed: eyes, FaceFound: true}
	s.frames = append(s.frames, signal.Repeat(f, n)...)
	return s
}

func (s *script) neutral(n int) *script {
	return s.face(0, 0, 0, n)
}

// look turns the head in direction d and back to neutral.
func (s *script) look(d intent.Direction) *script {
	x, y := 0.0, 0.0
	switch d {
	case intent.Up:
		y = -0.5
	case intent.Down:
		y = 0.5
	case intent.Left:
		x = -0.5
	case intent.Right:
		x = 0.5
	}
	return s.face(x, y, 0, 6).neutral(8)
}

// blink holds both eyes closed long enough to commit, then opens them.
func (s *script) blink() *script {
	return s.face(0, 0, 0.9, 15).neutral(12)
}

func (s *script) noFace(n int) *script {
	s.frames = append(s.frames, signal.Repeat(signal.NoFace(0), n)...)
	return s
}

type recorder struct {
	profiles []signal.CalibrationProfile
	results  []game.RoundResult
	phases   []game.Phase
}

func testConfig(rec *recorder) Config {
	cfg := DefaultConfig()
	cfg.Calibrator.Window = 10
	cfg.Game.Strategy = func(game.Difficulty) game.Strategy {
		return &game.ScriptedStrategy{Cells: []game.Cell{{Row: 2, Col: 0}, {Row: 2, Col: 1}, {Row: 2, Col: 2}}}
	}
	cfg.OnCalibrated = func(p signal.CalibrationProfile, _ int) {
		rec.profiles = append(rec.profiles, p)
	}
	cfg.OnRoundOver = func(r game.RoundResult) {
		rec.results = append(rec.results, r)
	}
	return cfg
}

func play(t *testing.T, s *Session, rec *recorder, frames []signal.Frame) Snapshot {
	t.Helper()
	var snap Snapshot
	for i, f := range frames {
		f.Tick = int64(i)
		var err error
		snap, err = s.Step(f)
		require.NoError(t, err, "tick %d", i)
		if n := len(rec.phases); n == 0 || rec.phases[n-1] != snap.Phase {
			rec.phases = append(rec.phases, snap.Phase)
		}
	}
	return snap
}

func TestSession_FullRound(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(rec))

	sc := (&script{}).neutral(10)
	sc.blink()                                       // lock Easy
	sc.look(intent.Up).blink()                       // X (0,1), computer (2,0)
	sc.look(intent.Left).blink()                     // X (0,0), computer (2,1)
	sc.look(intent.Right).look(intent.Right).blink() // X (0,2) wins

	snap := play(t, s, rec, sc.frames)
	require.Equal(t, game.RoundOver, snap.Phase)
	assert.Equal(t, game.X, snap.Winner)
	assert.Equal(t, game.Easy, snap.Difficulty)
	assert.Equal(t, []game.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}, snap.WinLine)

	require.Len(t, rec.profiles, 1)
	assert.InDelta(t, 0.35, rec.profiles[0].LeftThreshold, 1e-9)
	require.Len(t, rec.results, 1)
	assert.Equal(t, game.Win, rec.results[0].Outcome)
	assert.Equal(t, 5, rec.results[0].Moves)

	snap = play(t, s, rec, (&script{}).neutral(150).frames)
	assert.Equal(t, game.SelectingDifficulty, snap.Phase)
	assert.Equal(t, game.Board{}, snap.Board)

	assert.Equal(t, []game.Phase{
		game.Calibrating,
		game.SelectingDifficulty,
		game.Playing,
		game.RoundOver,
		game.SelectingDifficulty,
	}, rec.phases)
}

func TestSession_SelectionCountdownStartsAfterCalibration(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig(rec)
	s := New(cfg)

	snap := play(t, s, rec, (&script{}).neutral(10).frames)
	require.Equal(t, game.SelectingDifficulty, snap.Phase)
	assert.Equal(t, cfg.Game.SelectTimeoutTicks, snap.SelectRemaining)

	snap, err := s.Step(signal.Frame{Tick: 10, FaceFound: true})
	require.NoError(t, err)
	assert.Equal(t, cfg.Game.SelectTimeoutTicks-1, snap.SelectRemaining)
}

func TestSession_StepsOnePerGesture(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig(rec)
	cfg.Game.Mode = game.TwoPlayer
	s := New(cfg)

	// A long head turn moves the cursor a single cell.
	sc := (&script{}).neutral(10).face(0.5, 0, 0, 120).neutral(10)
	snap := play(t, s, rec, sc.frames)

	assert.Equal(t, game.Playing, snap.Phase)
	assert.Equal(t, game.Cell{Row: 1, Col: 2}, snap.Cursor)
}

func TestSession_FaceLoss(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(rec))

	sc := (&script{}).neutral(10).noFace(30)
	snap := play(t, s, rec, sc.frames)
	assert.True(t, snap.FaceLost)
	assert.False(t, snap.FaceFound)
	assert.Contains(t, snap.Status, "No face detected")

	snap = play(t, s, rec, (&script{}).neutral(1).frames)
	assert.False(t, snap.FaceLost)
	assert.NotContains(t, snap.Status, "No face detected")
}

func TestSession_NoFaceDuringCalibration(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(rec))

	snap := play(t, s, rec, (&script{}).neutral(3).noFace(50).frames)
	assert.Equal(t, game.Calibrating, snap.Phase)
	assert.Equal(t, 3, snap.Calibration.Collected)
	assert.Contains(t, snap.Status, "No face detected")

	snap = play(t, s, rec, (&script{}).neutral(7).frames)
	assert.Equal(t, game.SelectingDifficulty, snap.Phase)
}

func TestSession_CalibrationAbort(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig(rec)
	cfg.Calibrator.MaxRestarts = 1
	s := New(cfg)

	var jitter []signal.Frame
	for i := 0; i < 20; i++ {
		x := 0.5
		if i%2 == 0 {
			x = -0.5
		}
		jitter = append(jitter, signal.Frame{Head: signal.Vec2{X: x}, FaceFound: true})
	}

	var err error
	for i, f := range jitter {
		f.Tick = int64(i)
		_, err = s.Step(f)
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, signal.ErrCalibrationAborted)

	snap, err := s.Step(signal.Frame{FaceFound: true})
	require.ErrorIs(t, err, signal.ErrCalibrationAborted)
	assert.Contains(t, snap.Status, "calibration aborted")
	assert.Equal(t, 2, snap.Calibration.Restarts)

	s.Recalibrate()
	require.NoError(t, s.Err())
	snap = play(t, s, rec, (&script{}).neutral(10).frames)
	assert.Equal(t, game.SelectingDifficulty, snap.Phase)
}

func TestSession_Recalibrate(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(rec))

	play(t, s, rec, (&script{}).neutral(10).blink().blink().frames)
	require.Equal(t, game.Playing, s.Snapshot().Phase)
	require.Equal(t, 1, s.Snapshot().Board.Count(game.X))

	s.Recalibrate()
	snap := s.Snapshot()
	assert.Equal(t, game.Calibrating, snap.Phase)
	assert.Nil(t, snap.Profile)
	require.Len(t, rec.results, 1)
	assert.Equal(t, game.Abandoned, rec.results[0].Outcome)

	// The new baseline follows the new head position.
	play(t, s, rec, (&script{}).face(0.3, 0.1, 0, 10).frames)
	require.Len(t, rec.profiles, 2)
	assert.InDelta(t, 0.3, rec.profiles[1].Baseline.X, 1e-9)
}
