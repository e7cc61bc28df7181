// Package config loads nayana's settings from defaults, an optional YAML file and
// NAYANA_ environment variables, and maps them onto component configs.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/detector"
	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/intent"
	"github.com/ayusman/nayana/internal/session"
	"github.com/ayusman/nayana/internal/signal"
)

// EnvPrefix prefixes every environment override, e.g. NAYANA_SERVER_ADDR.
const EnvPrefix = "NAYANA"

// Config is the full application configuration. Durations are given in seconds and
// converted to ticks at Camera.FPS.
type Config struct {
	DataDir     string            `mapstructure:"data_dir"`
	DBPath      string            `mapstructure:"db_path"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	Camera      CameraConfig      `mapstructure:"camera"`
	Detector    DetectorConfig    `mapstructure:"detector"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Signal      SignalConfig      `mapstructure:"signal"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Game        GameConfig        `mapstructure:"game"`
	Hooks       HooksConfig       `mapstructure:"hooks"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HooksConfig controls the executables notified of rounds and calibrations.
type HooksConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

type CameraConfig struct {
	Device int  `mapstructure:"device"`
	FPS    int  `mapstructure:"fps"`
	Width  int  `mapstructure:"width"`
	Height int  `mapstructure:"height"`
	Mirror bool `mapstructure:"mirror"`
}

type DetectorConfig struct {
	MinConfidence         float64       `mapstructure:"min_confidence"`
	MinTrackingConfidence float64       `mapstructure:"min_tracking_confidence"`
	ScriptPath            string        `mapstructure:"script_path"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	OpenEAR               float64       `mapstructure:"open_ear"`
}

type CalibrationConfig struct {
	WindowSeconds      float64 `mapstructure:"window_seconds"`
	MaxRestarts        int     `mapstructure:"max_restarts"`
	HeadVarianceCutoff float64 `mapstructure:"head_variance_cutoff"`
	EyeVarianceCutoff  float64 `mapstructure:"eye_variance_cutoff"`
	EyeMargin          float64 `mapstructure:"eye_margin"`
	MaxEyeThreshold    float64 `mapstructure:"max_eye_threshold"`
	SmoothingFrames    int     `mapstructure:"smoothing_frames"`
}

type SignalConfig struct {
	MinClosureFrames int  `mapstructure:"min_closure_frames"`
	InvertX          bool `mapstructure:"invert_x"`
}

type FilterConfig struct {
	FireHorizontal        float64 `mapstructure:"fire_horizontal"`
	FireVertical          float64 `mapstructure:"fire_vertical"`
	ReleaseHorizontal     float64 `mapstructure:"release_horizontal"`
	ReleaseVertical       float64 `mapstructure:"release_vertical"`
	ReleaseFrames         int     `mapstructure:"release_frames"`
	StepCooldownSeconds   float64 `mapstructure:"step_cooldown_seconds"`
	CommitHoldSeconds     float64 `mapstructure:"commit_hold_seconds"`
	CommitCooldownSeconds float64 `mapstructure:"commit_cooldown_seconds"`
	ResetHoldSeconds      float64 `mapstructure:"reset_hold_seconds"`
	ResetCooldownSeconds  float64 `mapstructure:"reset_cooldown_seconds"`
	FaceLossGraceSeconds  float64 `mapstructure:"face_loss_grace_seconds"`
}

type GameConfig struct {
	Mode                 string  `mapstructure:"mode"`
	Human                string  `mapstructure:"human"`
	WrapCursor           bool    `mapstructure:"wrap_cursor"`
	KeepDifficulty       bool    `mapstructure:"keep_difficulty"`
	DefaultDifficulty    string  `mapstructure:"default_difficulty"`
	SelectTimeoutSeconds float64 `mapstructure:"select_timeout_seconds"`
	AIDelaySeconds       float64 `mapstructure:"ai_delay_seconds"`
	RoundOverSeconds     float64 `mapstructure:"round_over_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("db_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.fps", capture.DefaultFPS)
	v.SetDefault("camera.width", capture.DefaultWidth)
	v.SetDefault("camera.height", capture.DefaultHeight)
	v.SetDefault("camera.mirror", true)

	v.SetDefault("detector.min_confidence", 0.6)
	v.SetDefault("detector.min_tracking_confidence", 0.6)
	v.SetDefault("detector.script_path", "")
	v.SetDefault("detector.idle_timeout", "30s")
	v.SetDefault("detector.open_ear", detector.DefaultOpenEAR)

	v.SetDefault("calibration.window_seconds", 1.5)
	v.SetDefault("calibration.max_restarts", 3)
	v.SetDefault("calibration.head_variance_cutoff", 0.004)
	v.SetDefault("calibration.eye_variance_cutoff", 0.05)
	v.SetDefault("calibration.eye_margin", 0.35)
	v.SetDefault("calibration.max_eye_threshold", 0.8)
	v.SetDefault("calibration.smoothing_frames", 5)

	v.SetDefault("signal.min_closure_frames", 2)
	v.SetDefault("signal.invert_x", false)

	v.SetDefault("filter.fire_horizontal", 0.25)
	v.SetDefault("filter.fire_vertical", 0.20)
	v.SetDefault("filter.release_horizontal", 0.12)
	v.SetDefault("filter.release_vertical", 0.10)
	v.SetDefault("filter.release_frames", 2)
	v.SetDefault("filter.step_cooldown_seconds", 0.2)
	v.SetDefault("filter.commit_hold_seconds", 0.35)
	v.SetDefault("filter.commit_cooldown_seconds", 0.5)
	v.SetDefault("filter.reset_hold_seconds", 3.0)
	v.SetDefault("filter.reset_cooldown_seconds", 1.0)
	v.SetDefault("filter.face_loss_grace_seconds", 0.8)

	v.SetDefault("game.mode", "vs_computer")
	v.SetDefault("game.human", "X")
	v.SetDefault("game.wrap_cursor", false)
	v.SetDefault("game.keep_difficulty", false)
	v.SetDefault("game.default_difficulty", "easy")
	v.SetDefault("game.select_timeout_seconds", 5.0)
	v.SetDefault("game.ai_delay_seconds", 0.33)
	v.SetDefault("game.round_over_seconds", 5.0)

	v.SetDefault("hooks.enabled", true)
	v.SetDefault("hooks.dir", "")
	v.SetDefault("hooks.timeout", "5s")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nayana"
	}
	return filepath.Join(home, ".nayana")
}

// Load reads the configuration. An explicit path must exist; without one, nayana.yaml
// is looked up in the working directory and the default data directory, and a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("nayana")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if _, err := game.ParseMode(c.Game.Mode); err != nil {
		return fmt.Errorf("game.mode: %w", err)
	}
	if _, err := game.ParseDifficulty(c.Game.DefaultDifficulty); err != nil {
		return fmt.Errorf("game.default_difficulty: %w", err)
	}
	if _, err := c.humanMark(); err != nil {
		return err
	}
	if c.Filter.FireHorizontal <= 0 || c.Filter.FireVertical <= 0 {
		return errors.New("filter fire thresholds must be positive")
	}
	return nil
}

// Ticks converts seconds to ticks at the configured frame rate, never less than one.
func (c *Config) Ticks(seconds float64) int {
	return max(1, int(math.Round(seconds*float64(c.Camera.FPS))))
}

// HooksDir returns hooks.dir, or the hooks directory inside the data directory.
func (c *Config) HooksDir() string {
	if c.Hooks.Dir != "" {
		return c.Hooks.Dir
	}
	return filepath.Join(c.DataDir, "hooks")
}

// DatabasePath returns db_path, or nayana.db inside the data directory.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "nayana.db")
}

// CaptureConfig returns the camera settings.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{
		DeviceID: c.Camera.Device,
		FPS:      c.Camera.FPS,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
	}
}

// DetectorConfig returns the face mesh settings.
func (c *Config) DetectorConfig() detector.Config {
	d := detector.DefaultConfig()
	d.MinConfidence = c.Detector.MinConfidence
	d.MinTrackingConf = c.Detector.MinTrackingConfidence
	d.ScriptPath = c.Detector.ScriptPath
	if c.Detector.IdleTimeout > 0 {
		d.IdleTimeout = c.Detector.IdleTimeout
	}
	return d
}

// CalibratorConfig returns the calibration settings.
func (c *Config) CalibratorConfig() signal.CalibratorConfig {
	return signal.CalibratorConfig{
		Window:             c.Ticks(c.Calibration.WindowSeconds),
		MaxRestarts:        c.Calibration.MaxRestarts,
		HeadVarianceCutoff: c.Calibration.HeadVarianceCutoff,
		EyeVarianceCutoff:  c.Calibration.EyeVarianceCutoff,
		EyeMargin:          c.Calibration.EyeMargin,
		MaxEyeThreshold:    c.Calibration.MaxEyeThreshold,
		SmoothingWindow:    c.Calibration.SmoothingFrames,
	}
}

// ExtractorConfig returns the signal extraction settings.
func (c *Config) ExtractorConfig() signal.ExtractorConfig {
	return signal.ExtractorConfig{
		MinClosureFrames: c.Signal.MinClosureFrames,
		InvertX:          c.Signal.InvertX,
	}
}

// FilterConfig returns the intent filter settings.
func (c *Config) FilterConfig(logger zerolog.Logger) intent.Config {
	f := c.Filter
	return intent.Config{
		FireHorizontal:      f.FireHorizontal,
		FireVertical:        f.FireVertical,
		ReleaseHorizontal:   f.ReleaseHorizontal,
		ReleaseVertical:     f.ReleaseVertical,
		ReleaseTicks:        max(1, f.ReleaseFrames),
		StepCooldownTicks:   c.Ticks(f.StepCooldownSeconds),
		CommitHoldTicks:     c.Ticks(f.CommitHoldSeconds),
		CommitCooldownTicks: c.Ticks(f.CommitCooldownSeconds),
		ResetHoldTicks:      c.Ticks(f.ResetHoldSeconds),
		ResetCooldownTicks:  c.Ticks(f.ResetCooldownSeconds),
		FaceLossGraceTicks:  c.Ticks(f.FaceLossGraceSeconds),
		Logger:              logger,
	}
}

func (c *Config) humanMark() (game.Mark, error) {
	var m game.Mark
	if err := m.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(c.Game.Human)))); err != nil || m == game.Empty {
		return game.Empty, fmt.Errorf("game.human must be X or O, got %q", c.Game.Human)
	}
	return m, nil
}

// GameConfig returns the game controller settings.
func (c *Config) GameConfig(logger zerolog.Logger) (game.Config, error) {
	mode, err := game.ParseMode(c.Game.Mode)
	if err != nil {
		return game.Config{}, err
	}
	difficulty, err := game.ParseDifficulty(c.Game.DefaultDifficulty)
	if err != nil {
		return game.Config{}, err
	}
	human, err := c.humanMark()
	if err != nil {
		return game.Config{}, err
	}

	return game.Config{
		Mode:               mode,
		Human:              human,
		WrapCursor:         c.Game.WrapCursor,
		KeepDifficulty:     c.Game.KeepDifficulty,
		DefaultDifficulty:  difficulty,
		SelectTimeoutTicks: c.Ticks(c.Game.SelectTimeoutSeconds),
		AIDelayTicks:       c.Ticks(c.Game.AIDelaySeconds),
		RoundOverTicks:     c.Ticks(c.Game.RoundOverSeconds),
		TicksPerSecond:     c.Camera.FPS,
		Logger:             logger,
	}, nil
}

// SessionConfig assembles the configuration of every pipeline stage.
func (c *Config) SessionConfig(logger zerolog.Logger) (session.Config, error) {
	g, err := c.GameConfig(logger.With().Str("component", "game").Logger())
	if err != nil {
		return session.Config{}, err
	}

	return session.Config{
		Calibrator: c.CalibratorConfig(),
		Extractor:  c.ExtractorConfig(),
		Filter:     c.FilterConfig(logger.With().Str("component", "intent").Logger()),
		Game:       g,
		Logger:     logger.With().Str("component", "session").Logger(),
	}, nil
}
