package cli

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/ayusman/nayana/internal/game"
	"github.com/ayusman/nayana/internal/session"
)

// calibrationBar renders calibration progress from session snapshots. A restart
// rewinds the bar; leaving the Calibrating phase finishes it.
type calibrationBar struct {
	out      io.Writer
	bar      *progressbar.ProgressBar
	restarts int
}

func newCalibrationBar(out io.Writer) *calibrationBar {
	return &calibrationBar{out: out}
}

func (c *calibrationBar) Observe(snap session.Snapshot) {
	if snap.Phase != game.Calibrating {
		if c.bar != nil {
			c.bar.Finish()
			c.bar = nil
		}
		return
	}

	total := snap.Calibration.Total
	if c.bar == nil {
		c.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(c.out),
			progressbar.OptionSetDescription("Calibrating - look at the screen"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
		c.restarts = snap.Calibration.Restarts
	}

	if snap.Calibration.Restarts != c.restarts {
		c.restarts = snap.Calibration.Restarts
		c.bar.Describe("Calibrating - hold still, restarting")
	}
	c.bar.Set(snap.Calibration.Collected)
}
