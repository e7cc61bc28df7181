// Package fixtures embeds the frame scripts shared by end-to-end and command tests.
package fixtures

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"

	"github.com/ayusman/nayana/internal/signal"
)

//go:embed scripts/*.jsonl
var scriptsFS embed.FS

// Script names.
const (
	TwoPlayerWin        = "two_player_win.jsonl"
	VsComputerWin       = "vs_computer_win.jsonl"
	ResetRound          = "reset_round.jsonl"
	UnsteadyCalibration = "unsteady_calibration.jsonl"
)

// LoadScript returns a source replaying the named frame script.
func LoadScript(name string) (*signal.JSONSource, error) {
	data, err := scriptsFS.ReadFile("scripts/" + name)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", name, err)
	}
	return signal.NewJSONSource(bytes.NewReader(data)), nil
}

// LoadFrames reads every frame of the named script.
func LoadFrames(name string) ([]signal.Frame, error) {
	src, err := LoadScript(name)
	if err != nil {
		return nil, err
	}

	var frames []signal.Frame
	for {
		f, err := src.Next(context.Background())
		if errors.Is(err, signal.ErrExhausted) {
			return frames, nil
		}
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", name, err)
		}
		frames = append(frames, f)
	}
}

// Scripts lists the embedded script names.
func Scripts() ([]string, error) {
	entries, err := fs.ReadDir(scriptsFS, "scripts")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// ScriptPath returns the on-disk path of the named script, for commands that take a
// file argument.
func ScriptPath(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "scripts", name)
}
