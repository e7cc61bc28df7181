package signal

// ExtractorConfig holds the tunables of signal extraction.
type ExtractorConfig struct {
	// MinClosureFrames is how many consecutive face frames an eye must read closed
	// before it is reported closed.
	MinClosureFrames int

	// InvertX flips the horizontal axis for cameras that deliver unmirrored images.
	InvertX bool
}

// DefaultExtractorConfig returns the extraction defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MinClosureFrames: 2,
	}
}

// Signal is the normalized, per-tick input of the intent filter.
type Signal struct {
	Tick         int64 `json:"tick"`
	Displacement Vec2  `json:"displacement"`
	LeftClosed   bool  `json:"left_closed"`
	RightClosed  bool  `json:"right_closed"`
	BothClosed   bool  `json:"both_closed"`
	FaceFound    bool  `json:"face_found"`
}

// Extractor converts frames into signals relative to a calibration profile.
// Head positions are smoothed with a moving window; eye flags require a run of
// consecutive closed readings.
type Extractor struct {
	profile CalibrationProfile
	config  ExtractorConfig

	window []Vec2
	next   int
	filled int
	sum    Vec2

	leftRun  int
	rightRun int

	last Signal
}

// NewExtractor creates an Extractor for the given profile.
func NewExtractor(profile CalibrationProfile, config ExtractorConfig) *Extractor {
	size := profile.SmoothingWindow
	if size <= 0 {
		size = 1
	}
	if config.MinClosureFrames <= 0 {
		config.MinClosureFrames = 1
	}

	return &Extractor{
		profile: profile,
		config:  config,
		window:  make([]Vec2, size),
	}
}

// Profile returns the calibration profile the extractor was built with.
func (e *Extractor) Profile() CalibrationProfile {
	return e.profile
}

// Extract converts one frame into a signal.
//
// For a frame without a face the previous signal is held: displacement and eye flags
// are repeated, FaceFound is false, and neither smoothing nor closure runs advance.
func (e *Extractor) Extract(f Frame) Signal {
	if !f.FaceFound {
		held := e.last
		held.Tick = f.Tick
		held.FaceFound = false
		return held
	}

	// Moving-window mean over the last N head samples.
	if e.filled == len(e.window) {
		e.sum = e.sum.Sub(e.window[e.next])
	} else {
		e.filled++
	}
	e.window[e.next] = f.Head
	e.sum = e.sum.Add(f.Head)
	e.next = (e.next + 1) % len(e.window)

	smoothed := e.sum.Scale(1 / float64(e.filled))
	displacement := smoothed.Sub(e.profile.Baseline)
	if e.config.InvertX {
		displacement.X = -displacement.X
	}

	e.leftRun = closureRun(e.leftRun, f.LeftClosed >= e.profile.LeftThreshold)
	e.rightRun = closureRun(e.rightRun, f.RightClosed >= e.profile.RightThreshold)

	left := e.leftRun >= e.config.MinClosureFrames
	right := e.rightRun >= e.config.MinClosureFrames

	e.last = Signal{
		Tick:         f.Tick,
		Displacement: displacement,
		LeftClosed:   left,
		RightClosed:  right,
		BothClosed:   left && right,
		FaceFound:    true,
	}
	return e.last
}

func closureRun(run int, closed bool) int {
	if !closed {
		return 0
	}
	return run + 1
}
