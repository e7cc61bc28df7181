package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// changeBlurSize is the Gaussian kernel applied before differencing.
	changeBlurSize = 21
	// changePixelDelta is the grey-level difference that counts a pixel as changed.
	changePixelDelta = 25
)

// ChangeDetector compares consecutive frames and reports the share of pixels that
// changed. Callers use it to skip re-encoding the preview for a still scene.
type ChangeDetector struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewChangeDetector creates a detector that reports a change when more than
// thresholdPercent of the pixels differ from the previous frame.
func NewChangeDetector(thresholdPercent float64) *ChangeDetector {
	return &ChangeDetector{
		threshold: thresholdPercent,
		prev:      gocv.NewMat(),
	}
}

// Changed reports whether frame differs from the previous frame, and by how many
// percent of its pixels. The first frame after construction or Reset always counts
// as changed.
func (d *ChangeDetector) Changed(frame *gocv.Mat) (bool, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: changeBlurSize, Y: changeBlurSize}, 0, 0, gocv.BorderDefault)

	if !d.primed {
		blurred.CopyTo(&d.prev)
		d.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, d.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, changePixelDelta, 255, gocv.ThresholdBinary)

	percent := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100
	blurred.CopyTo(&d.prev)

	return percent > d.threshold, percent
}

// Reset forgets the previous frame.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release()
}

// Close releases the stored frame.
func (d *ChangeDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release()
}

func (d *ChangeDetector) release() {
	if !d.prev.Empty() {
		d.prev.Close()
		d.prev = gocv.NewMat()
	}
	d.primed = false
}
