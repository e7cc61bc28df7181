// Package detector provides face mesh detection and the measurements derived from it.
package detector

import "math"

// Face mesh landmark indices following the MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	NoseTip       = 1
	Chin          = 152
	LeftEyeOuter  = 33
	RightEyeOuter = 263
	NumLandmarks  = 478
)

// Eye contours ordered p1..p6 for the eye aspect ratio: p1/p4 are the corners,
// p2/p6 and p3/p5 are the upper/lower lid pairs.
var (
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	RightEye = [6]int{362, 385, 387, 263, 373, 380}
)

// minSpan is the smallest landmark distance treated as a real face.
const minSpan = 1e-10

// DefaultOpenEAR is a typical eye aspect ratio of a relaxed open eye.
const DefaultOpenEAR = 0.30

// Point3D represents a 3D point in normalized image coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarks represents the 478 face mesh landmarks detected by MediaPipe.
type FaceLandmarks struct {
	Points [NumLandmarks]Point3D `json:"points"`
	Score  float64               `json:"score"`
}

// Measurement is what the game needs from one face.
type Measurement struct {
	// HeadX and HeadY are the nose tip offset from the eye midpoint, in inter-ocular
	// distances. They grow to the right of the image and downward.
	HeadX float64
	HeadY float64

	LeftEAR  float64
	RightEAR float64

	// LeftClosed and RightClosed are closure confidences in [0,1].
	LeftClosed  float64
	RightClosed float64
}

// distance2D calculates the Euclidean distance between two points in the image plane.
func distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio returns (|p2-p6| + |p3-p5|) / (2|p1-p4|) for the given eye contour.
// The ratio drops toward zero as the eye closes.
func (f *FaceLandmarks) EyeAspectRatio(eye [6]int) float64 {
	p := func(i int) Point3D { return f.Points[eye[i]] }

	width := f.eyeWidth(eye)
	if width < minSpan {
		return 0
	}
	return (distance2D(p(1), p(5)) + distance2D(p(2), p(4))) / (2 * width)
}

func (f *FaceLandmarks) eyeWidth(eye [6]int) float64 {
	return distance2D(f.Points[eye[0]], f.Points[eye[3]])
}

// HeadOffset returns the nose tip position relative to the midpoint between the outer
// eye corners, scaled by the distance between those corners. ok is false when the
// corners coincide and no offset can be measured.
func (f *FaceLandmarks) HeadOffset() (x, y float64, ok bool) {
	left := f.Points[LeftEyeOuter]
	right := f.Points[RightEyeOuter]
	nose := f.Points[NoseTip]

	scale := distance2D(left, right)
	if scale < minSpan {
		return 0, 0, false
	}

	midX := (left.X + right.X) / 2
	midY := (left.Y + right.Y) / 2
	return (nose.X - midX) / scale, (nose.Y - midY) / scale, true
}

// Closure converts an eye aspect ratio to a closure confidence:
// clamp(1 - ear/openEAR, 0, 1).
func Closure(ear, openEAR float64) float64 {
	if openEAR <= 0 {
		openEAR = DefaultOpenEAR
	}
	return math.Max(0, math.Min(1, 1-ear/openEAR))
}

// Measure derives head offset and eye closure from the landmarks. It returns false
// for a degenerate mesh whose eye corners coincide.
func (f *FaceLandmarks) Measure(openEAR float64) (Measurement, bool) {
	x, y, ok := f.HeadOffset()
	if !ok || f.eyeWidth(LeftEye) < minSpan || f.eyeWidth(RightEye) < minSpan {
		return Measurement{}, false
	}
	left := f.EyeAspectRatio(LeftEye)
	right := f.EyeAspectRatio(RightEye)

	return Measurement{
		HeadX:       x,
		HeadY:       y,
		LeftEAR:     left,
		RightEAR:    right,
		LeftClosed:  Closure(left, openEAR),
		RightClosed: Closure(right, openEAR),
	}, true
}
