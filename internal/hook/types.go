// Package hook runs user executables when something happens in a game: a round ends
// or a calibration completes. Each hook lives in its own directory next to a hook.json
// manifest, receives the Event as JSON on stdin and answers with a Response on stdout.
package hook

import "time"

// Event types.
const (
	EventRoundOver  = "round_over"
	EventCalibrated = "calibrated"
)

// Manifest describes a hook and the events it subscribes to.
type Manifest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
}

// Subscribes reports whether the manifest lists eventType. An empty list subscribes to
// every event.
func (m Manifest) Subscribes(eventType string) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Event is sent to a hook on stdin.
type Event struct {
	Type        string            `json:"type"`
	Time        time.Time         `json:"time"`
	Round       *RoundEvent       `json:"round,omitempty"`
	Calibration *CalibrationEvent `json:"calibration,omitempty"`
}

// RoundEvent describes a finished round.
type RoundEvent struct {
	Round      int    `json:"round"`
	Mode       string `json:"mode"`
	Difficulty string `json:"difficulty"`
	Outcome    string `json:"outcome"`
	Winner     string `json:"winner,omitempty"`
	Moves      int    `json:"moves"`
	Board      string `json:"board"`
}

// CalibrationEvent describes a completed calibration.
type CalibrationEvent struct {
	BaselineX      float64 `json:"baseline_x"`
	BaselineY      float64 `json:"baseline_y"`
	LeftThreshold  float64 `json:"left_threshold"`
	RightThreshold float64 `json:"right_threshold"`
	Restarts       int     `json:"restarts"`
}

// Response is what a hook prints on stdout.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
