package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ScriptedSource plays back a fixed frame sequence, one frame per call.
// Tick indices are rewritten to the playback position so they are always monotonic.
type ScriptedSource struct {
	frames []Frame
	index  int
}

// NewScriptedSource creates a source over frames.
func NewScriptedSource(frames []Frame) *ScriptedSource {
	return &ScriptedSource{frames: frames}
}

// Next returns the next scripted frame or ErrExhausted.
func (s *ScriptedSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.index >= len(s.frames) {
		return Frame{}, ErrExhausted
	}

	f := s.frames[s.index]
	f.Tick = int64(s.index)
	s.index++
	return f, nil
}

// Remaining returns how many frames are left.
func (s *ScriptedSource) Remaining() int {
	return len(s.frames) - s.index
}

// JSONSource reads frames from newline-delimited JSON, one Frame object per line.
// Blank lines and lines starting with '#' are skipped. A line may carry a "repeat"
// field to emit the same frame several times.
type JSONSource struct {
	scanner *bufio.Scanner
	line    int
	pending Frame
	repeat  int
	tick    int64
}

// jsonFrame is the on-disk shape of a scripted frame.
type jsonFrame struct {
	Frame
	Repeat int `json:"repeat"`
}

// NewJSONSource creates a source reading frames from r.
func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{scanner: bufio.NewScanner(r)}
}

// Next returns the next frame from the stream or ErrExhausted at end of input.
func (s *JSONSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	for s.repeat == 0 {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("read frames: %w", err)
			}
			return Frame{}, ErrExhausted
		}
		s.line++

		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var jf jsonFrame
		if err := json.Unmarshal([]byte(text), &jf); err != nil {
			return Frame{}, fmt.Errorf("parse frame on line %d: %w", s.line, err)
		}
		s.pending = jf.Frame
		s.repeat = max(jf.Repeat, 1)
	}

	s.repeat--
	f := s.pending
	f.Tick = s.tick
	s.tick++
	return f, nil
}

// Repeat returns n copies of f, handy for building frame scripts.
func Repeat(f Frame, n int) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = f
	}
	return frames
}
