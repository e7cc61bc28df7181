package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/nayana/internal/signal"
)

var timeNow = time.Now

func ticksToDuration(ticks int64, fps int) time.Duration {
	return time.Duration(ticks) * time.Second / time.Duration(fps)
}

// Run steps the session with frames from src until ctx ends or src is exhausted.
//
// Pending recalibrations are applied between ticks. Frames read while the app is
// disabled are dropped. Run returns the session error when calibration aborts, and nil
// on cancellation or exhaustion.
func (a *App) Run(ctx context.Context, src signal.Source) error {
	for {
		f, err := src.Next(ctx)
		switch {
		case errors.Is(err, signal.ErrExhausted):
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("read frame: %w", err)
		}

		a.mu.Lock()
		enabled := a.enabled
		recalibrate := a.recalibrate
		a.recalibrate = false
		a.mu.Unlock()

		if recalibrate {
			a.session.Recalibrate()
			a.config.Logger.Info().Int64("tick", f.Tick).Msg("recalibrating")
		}
		if !enabled {
			continue
		}

		snap, stepErr := a.session.Step(f)

		a.mu.Lock()
		a.snapshot = snap
		a.mu.Unlock()

		if a.config.OnSnapshot != nil {
			a.config.OnSnapshot(snap)
		}

		if stepErr != nil {
			return stepErr
		}
	}
}
