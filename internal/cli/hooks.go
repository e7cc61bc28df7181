package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayusman/nayana/internal/config"
	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/hook"
	"github.com/ayusman/nayana/internal/logging"
	"github.com/ayusman/nayana/internal/session"
	"github.com/ayusman/nayana/internal/signal"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List hooks notified of rounds and calibrations",
	Long: `List the executables found in the hooks directory.

Each hook is a directory holding a hook.json manifest:
  {"name": "announce", "executable": "run.sh", "events": ["round_over"]}

The hook receives the event as JSON on stdin and prints {"ok": true} on stdout.`,
	Args: cobra.NoArgs,
	RunE: runHooksList,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
}

func runHooksList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	m := hook.NewManager(cfg.HooksDir())
	if err := m.Discover(); err != nil {
		return fmt.Errorf("discover hooks: %w", err)
	}

	out := cmd.OutOrStdout()
	hooks := m.List()
	if len(hooks) == 0 {
		fmt.Fprintf(out, "No hooks in %s\n", m.Dir())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEVENTS\tEXECUTABLE")
	for _, h := range hooks {
		events := strings.Join(h.Manifest.Events, ",")
		if events == "" {
			events = "all"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Manifest.Name, events, h.Executable)
	}
	return w.Flush()
}

// startHooks discovers hooks and starts a dispatcher, or returns nil when hooks are
// disabled or none are installed.
func startHooks(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*hook.Dispatcher, error) {
	if !cfg.Hooks.Enabled {
		return nil, nil
	}

	m := hook.NewManager(cfg.HooksDir())
	if err := m.Discover(); err != nil {
		return nil, fmt.Errorf("discover hooks: %w", err)
	}
	if len(m.List()) == 0 {
		return nil, nil
	}

	hookLogger := logging.Component(logger, "hooks")
	hookLogger.Info().Int("count", len(m.List())).Str("dir", m.Dir()).Msg("hooks loaded")

	d := hook.NewDispatcher(m, hook.NewExecutor(cfg.Hooks.Timeout), hookLogger)
	d.Start(ctx)
	return d, nil
}

// publishHooks chains the session callbacks so d is notified of every calibration and
// finished round. A nil dispatcher leaves sc unchanged.
func publishHooks(sc *session.Config, d *hook.Dispatcher) {
	if d == nil {
		return
	}

	onCalibrated, onRoundOver := sc.OnCalibrated, sc.OnRoundOver
	sc.OnCalibrated = func(p signal.CalibrationProfile, restarts int) {
		d.Publish(hook.Calibrated(p, restarts))
		if onCalibrated != nil {
			onCalibrated(p, restarts)
		}
	}
	sc.OnRoundOver = func(r game.RoundResult) {
		d.Publish(hook.RoundOver(r))
		if onRoundOver != nil {
			onRoundOver(r)
		}
	}
}
