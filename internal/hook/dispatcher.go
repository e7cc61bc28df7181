package hook

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/signal"
)

// queueSize is how many events may wait for the worker before new ones are dropped.
const queueSize = 16

// Dispatcher delivers events to subscribed hooks on its own goroutine, so the
// processing loop never waits for a hook.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   zerolog.Logger

	events chan Event
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewDispatcher creates a dispatcher. Call Start before publishing.
func NewDispatcher(manager *Manager, executor *Executor, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		logger:   logger,
		events:   make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
}

// Start runs the worker until Close.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for ev := range d.events {
			d.deliver(ctx, ev)
		}
	}()
}

// Publish queues ev. It returns false when the dispatcher is closed or the queue is full.
func (d *Dispatcher) Publish(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	select {
	case d.events <- ev:
		return true
	default:
		d.logger.Warn().Str("event", ev.Type).Msg("hook queue full, dropping event")
		return false
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, h := range d.manager.For(ev.Type) {
		resp, err := d.executor.Run(ctx, h, ev)
		if err != nil {
			d.logger.Error().Err(err).Str("hook", h.Manifest.Name).Str("event", ev.Type).Msg("hook failed")
			continue
		}
		if !resp.OK {
			d.logger.Warn().Str("hook", h.Manifest.Name).Str("event", ev.Type).Str("error", resp.Error).Msg("hook reported an error")
			continue
		}
		d.logger.Debug().Str("hook", h.Manifest.Name).Str("event", ev.Type).Msg("hook ran")
	}
}

// RoundOver builds the event for a finished round.
func RoundOver(r game.RoundResult) Event {
	return Event{
		Type: EventRoundOver,
		Time: time.Now(),
		Round: &RoundEvent{
			Round:      r.Round,
			Mode:       r.Mode.String(),
			Difficulty: r.Difficulty.String(),
			Outcome:    r.Outcome.String(),
			Winner:     r.Winner.String(),
			Moves:      r.Moves,
			Board:      strings.ReplaceAll(r.Board.String(), "\n", "/"),
		},
	}
}

// Calibrated builds the event for a completed calibration.
func Calibrated(p signal.CalibrationProfile, restarts int) Event {
	return Event{
		Type: EventCalibrated,
		Time: time.Now(),
		Calibration: &CalibrationEvent{
			BaselineX:      p.Baseline.X,
			BaselineY:      p.Baseline.Y,
			LeftThreshold:  p.LeftThreshold,
			RightThreshold: p.RightThreshold,
			Restarts:       restarts,
		},
	}
}
