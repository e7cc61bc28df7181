package detector

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	faces []FaceLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []FaceLandmarks) {
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close marks the mock as closed.
func (m *MockDetector) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	return m.closed
}

// FacePose describes a synthetic face for SyntheticFace.
type FacePose struct {
	// HeadX and HeadY are the nose offset from the eye midpoint in inter-ocular distances.
	HeadX, HeadY float64

	// LeftEAR and RightEAR are the eye aspect ratios to produce.
	LeftEAR, RightEAR float64
}

// NeutralPose is a face looking straight at the camera with both eyes open.
func NeutralPose() FacePose {
	return FacePose{HeadY: 0.55, LeftEAR: DefaultOpenEAR, RightEAR: DefaultOpenEAR}
}

// SyntheticFace builds landmarks whose Measure output matches pose.
// Only the landmarks used by Measure are placed; the rest sit at the face center.
func SyntheticFace(pose FacePose) FaceLandmarks {
	const (
		centerX = 0.5
		centerY = 0.45
		iod     = 0.2 // distance between outer eye corners
		eyeW    = 0.06
	)

	face := FaceLandmarks{Score: 0.95}
	for i := range face.Points {
		face.Points[i] = Point3D{X: centerX, Y: centerY}
	}

	leftCorner := centerX - iod/2
	rightCorner := centerX + iod/2

	placeEye(&face, LeftEye, leftCorner, leftCorner+eyeW, centerY, pose.LeftEAR)
	placeEye(&face, RightEye, rightCorner-eyeW, rightCorner, centerY, pose.RightEAR)

	face.Points[NoseTip] = Point3D{X: centerX + pose.HeadX*iod, Y: centerY + pose.HeadY*iod}
	face.Points[Chin] = Point3D{X: centerX + pose.HeadX*iod, Y: centerY + 0.3}

	return face
}

// placeEye lays out an eye contour between x0 and x1 with the given aspect ratio.
// The outer corner (LeftEyeOuter or RightEyeOuter) lands exactly on x0 or x1.
func placeEye(face *FaceLandmarks, eye [6]int, x0, x1, y, ear float64) {
	width := x1 - x0
	half := ear * width / 2

	face.Points[eye[0]] = Point3D{X: x0, Y: y}
	face.Points[eye[3]] = Point3D{X: x1, Y: y}
	face.Points[eye[1]] = Point3D{X: x0 + width/3, Y: y - half}
	face.Points[eye[2]] = Point3D{X: x0 + 2*width/3, Y: y - half}
	face.Points[eye[4]] = Point3D{X: x0 + 2*width/3, Y: y + half}
	face.Points[eye[5]] = Point3D{X: x0 + width/3, Y: y + half}
}
