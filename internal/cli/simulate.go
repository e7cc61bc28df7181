package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/nayana/internal/app"
	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/logging"
	"github.com/ayusman/nayana/internal/session"
	"github.com/ayusman/nayana/internal/signal"
	"github.com/ayusman/nayana/internal/store"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [frames.jsonl]",
	Short: "Replay recorded face frames through the game",
	Long: `Replay a newline-delimited JSON frame script through calibration, the intent
filter and the game, printing phase changes and round results.

Each line is a frame such as:
  {"head":{"x":0.4,"y":0},"left_closed":0,"right_closed":0,"face_found":true,"repeat":6}

Reads stdin when no file is given or the file is "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Bool("record", false, "Store calibrations and rounds in the database")
	simulateCmd.Flags().Bool("json", false, "Print round results as JSON lines")
	simulateCmd.Flags().Bool("intents", false, "Print every intent the filter fires")
	simulateCmd.Flags().Bool("hooks", false, "Notify installed hooks of calibrations and rounds")
	simulateCmd.Flags().Int("seed", 0, "Seed the easy opponent for repeatable games (0 = random)")
	addGameFlags(simulateCmd)
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyGameFlags(cmd, cfg); err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open frames: %w", err)
		}
		defer f.Close()
		in = f
	}

	var st *store.Store
	if mustGetBool(cmd, "record") {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		st, err = store.New(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	sc, err := cfg.SessionConfig(logger)
	if err != nil {
		return err
	}
	if seed := mustGetInt(cmd, "seed"); seed != 0 {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		sc.Game.Strategy = func(d game.Difficulty) game.Strategy {
			if d == game.Hard {
				return game.RuleBasedStrategy{}
			}
			return game.NewRandomStrategy(rng)
		}
	}

	rep := &simulationReport{
		out:     cmd.OutOrStdout(),
		json:    mustGetBool(cmd, "json"),
		intents: mustGetBool(cmd, "intents"),
	}
	sc.OnCalibrated = rep.calibrated
	sc.OnRoundOver = rep.roundOver

	if mustGetBool(cmd, "hooks") {
		hooks, err := startHooks(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		if hooks != nil {
			defer hooks.Close()
		}
		publishHooks(&sc, hooks)
	}

	// Run without Start: frames come from the script and no camera or detector opens.
	a := app.New(app.Config{
		Session:    sc,
		Store:      st,
		Logger:     logging.Component(logger, "app"),
		OnSnapshot: rep.observe,
	})

	if err := a.Run(context.Background(), signal.NewJSONSource(in)); err != nil {
		return err
	}
	rep.summary(a.Snapshot())
	return nil
}

// simulationReport prints what happens during a replay.
type simulationReport struct {
	out     io.Writer
	json    bool
	intents bool

	tick   int64
	phase  game.Phase
	seen   bool
	rounds int
}

func (r *simulationReport) observe(snap session.Snapshot) {
	r.tick = snap.Tick
	if r.intents && !snap.LastIntent.IsNone() {
		r.printf("tick %d: %s\n", snap.Tick, snap.LastIntent)
	}
	if !r.seen || snap.Phase != r.phase {
		r.seen = true
		r.phase = snap.Phase
		r.printf("tick %d: %s\n", snap.Tick, phaseLine(snap))
	}
}

func (r *simulationReport) calibrated(p signal.CalibrationProfile, restarts int) {
	r.printf("tick %d: calibrated after %d restarts (baseline %.3f,%.3f, eye thresholds %.2f/%.2f)\n",
		r.tick+1, restarts, p.Baseline.X, p.Baseline.Y, p.LeftThreshold, p.RightThreshold)
}

func (r *simulationReport) roundOver(res game.RoundResult) {
	r.rounds++
	if r.json {
		line, err := json.Marshal(roundLine{
			Round:      res.Round,
			Mode:       res.Mode.String(),
			Difficulty: res.Difficulty.String(),
			Outcome:    res.Outcome.String(),
			Winner:     res.Winner.String(),
			Moves:      res.Moves,
			Ticks:      res.Ticks,
			Board:      strings.Split(res.Board.String(), "\n"),
		})
		if err == nil {
			r.printf("%s\n", line)
		}
		return
	}

	r.printf("round %d: %s in %d moves (%s, %s)\n", res.Round, outcomeText(res), res.Moves, res.Difficulty, res.Mode)
	r.printf("%s\n", res.Board.String())
}

func (r *simulationReport) summary(snap session.Snapshot) {
	if r.json {
		return
	}
	r.printf("%d ticks, %d rounds, final phase %s\n", snap.Tick+1, r.rounds, snap.Phase)
}

func (r *simulationReport) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// roundLine is the --json shape of a finished round.
type roundLine struct {
	Round      int      `json:"round"`
	Mode       string   `json:"mode"`
	Difficulty string   `json:"difficulty"`
	Outcome    string   `json:"outcome"`
	Winner     string   `json:"winner,omitempty"`
	Moves      int      `json:"moves"`
	Ticks      int64    `json:"ticks"`
	Board      []string `json:"board"`
}

func phaseLine(snap session.Snapshot) string {
	if snap.Phase == game.Playing {
		return fmt.Sprintf("%s (%s)", snap.Phase, snap.Difficulty)
	}
	return snap.Phase.String()
}

func outcomeText(res game.RoundResult) string {
	switch res.Outcome {
	case game.Win:
		return res.Winner.String() + " wins"
	case game.Draw:
		return "draw"
	default:
		return "abandoned"
	}
}
