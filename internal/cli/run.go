package cli

import (
	"fmt"
	"os"
	"os/exec"
	ossignal "os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/nayana/internal/app"
	"github.com/ayusman/nayana/internal/config"
	"github.com/ayusman/nayana/internal/logging"
	"github.com/ayusman/nayana/internal/server"
	"github.com/ayusman/nayana/internal/session"
	"github.com/ayusman/nayana/internal/store"
	"github.com/ayusman/nayana/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play with the webcam",
	Long: `Open the webcam, calibrate on your resting face and start playing.

Turn your head to move the cursor, close both eyes briefly to place a mark or
confirm a difficulty, and hold the right eye closed for three seconds to reset
the round. The board is served over HTTP for the renderer.`,
	RunE: runGame,
}

func init() {
	runCmd.Flags().Bool("tray", false, "Show a system tray menu")
	addGameFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// addGameFlags registers the flags shared by run and simulate.
func addGameFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "Game mode: vs_computer or two_player")
	cmd.Flags().String("difficulty", "", "Default difficulty: easy or hard")
	cmd.Flags().String("human", "", "Mark placed by the player in vs_computer mode: X or O")
}

// applyGameFlags copies explicitly set game flags into cfg.
func applyGameFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("mode") {
		cfg.Game.Mode = mustGetString(cmd, "mode")
	}
	if cmd.Flags().Changed("difficulty") {
		cfg.Game.DefaultDifficulty = mustGetString(cmd, "difficulty")
	}
	if cmd.Flags().Changed("human") {
		cfg.Game.Human = mustGetString(cmd, "human")
	}
	return cfg.Validate()
}

func runGame(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyGameFlags(cmd, cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sc, err := cfg.SessionConfig(logger)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hooks, err := startHooks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if hooks != nil {
		defer hooks.Close()
	}
	publishHooks(&sc, hooks)

	var tr *tray.Tray
	if mustGetBool(cmd, "tray") {
		tr = tray.New()
	}

	hub := server.NewHub(logging.Component(logger, "ws"))
	bar := newCalibrationBar(cmd.ErrOrStderr())

	a := app.New(app.Config{
		Session:          sc,
		Camera:           cfg.CaptureConfig(),
		Detector:         cfg.DetectorConfig(),
		OpenEAR:          cfg.Detector.OpenEAR,
		Mirror:           cfg.Camera.Mirror,
		PreviewThreshold: app.DefaultPreviewThreshold,
		Store:            st,
		Logger:           logging.Component(logger, "app"),
		OnSnapshot: func(snap session.Snapshot) {
			hub.Publish(snap)
			bar.Observe(snap)
			if tr != nil {
				tr.SetStatus(snap.Phase.String(), snap.Status)
			}
		},
	})

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	defer a.Stop()

	boardURL := ""
	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			StaticDir: staticDir(cfg),
			Store:     st,
			Game:      a,
			Frames:    a,
			Hub:       hub,
			Logger:    logging.Component(logger, "server"),
		})
		boardURL = "http://" + strings.Replace(cfg.Server.Addr, "0.0.0.0", "127.0.0.1", 1)
		if strings.HasPrefix(cfg.Server.Addr, ":") {
			boardURL = "http://127.0.0.1" + cfg.Server.Addr
		}

		go func() {
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
				logger.Error().Err(err).Msg("server stopped")
				stop()
			}
		}()
		logger.Info().Str("url", boardURL).Msg("serving board")
	}

	if tr == nil {
		<-ctx.Done()
		return nil
	}

	tr.OnToggle(a.SetEnabled)
	tr.OnRecalibrate(a.Recalibrate)
	tr.OnQuit(stop)
	tr.OnOpenBoard(func() {
		if boardURL == "" {
			return
		}
		if err := openBrowser(boardURL); err != nil {
			logger.Warn().Err(err).Str("url", boardURL).Msg("open browser")
		}
	})
	go func() {
		<-ctx.Done()
		tr.Quit()
	}()
	tr.Run()
	return nil
}

// staticDir returns server.static_dir or the first web directory found next to the
// working directory or in ~/.nayana/web.
func staticDir(cfg *config.Config) string {
	if cfg.Server.StaticDir != "" {
		return cfg.Server.StaticDir
	}

	for _, p := range []string{"web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
