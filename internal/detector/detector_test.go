package detector

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

const epsilon = 1e-9

func TestFaceLandmarks_EyeAspectRatio(t *testing.T) {
	t.Run("matches constructed eye", func(t *testing.T) {
		for _, ear := range []float64{0.05, 0.2, 0.3, 0.45} {
			face := SyntheticFace(FacePose{LeftEAR: ear, RightEAR: ear / 2})

			if got := face.EyeAspectRatio(LeftEye); math.Abs(got-ear) > epsilon {
				t.Errorf("left EAR: expected %f, got %f", ear, got)
			}
			if got := face.EyeAspectRatio(RightEye); math.Abs(got-ear/2) > epsilon {
				t.Errorf("right EAR: expected %f, got %f", ear/2, got)
			}
		}
	})

	t.Run("degenerate eye returns zero", func(t *testing.T) {
		var face FaceLandmarks
		if got := face.EyeAspectRatio(LeftEye); got != 0 {
			t.Errorf("expected 0 for collapsed eye, got %f", got)
		}
	})

	t.Run("is scale invariant", func(t *testing.T) {
		face := SyntheticFace(NeutralPose())
		scaled := face
		for i := range scaled.Points {
			scaled.Points[i].X *= 2.5
			scaled.Points[i].Y *= 2.5
		}

		a := face.EyeAspectRatio(LeftEye)
		b := scaled.EyeAspectRatio(LeftEye)
		if math.Abs(a-b) > epsilon {
			t.Errorf("expected EAR unchanged by scaling, got %f and %f", a, b)
		}
	})
}

func TestFaceLandmarks_HeadOffset(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
	}{
		{"centered", 0, 0.55},
		{"turned right", 0.3, 0.55},
		{"turned left", -0.25, 0.5},
		{"looking up", 0, 0.2},
		{"looking down", 0, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face := SyntheticFace(FacePose{HeadX: tt.x, HeadY: tt.y, LeftEAR: 0.3, RightEAR: 0.3})
			x, y, ok := face.HeadOffset()
			if !ok {
				t.Fatal("HeadOffset() ok = false")
			}

			if math.Abs(x-tt.x) > epsilon {
				t.Errorf("expected x %f, got %f", tt.x, x)
			}
			if math.Abs(y-tt.y) > epsilon {
				t.Errorf("expected y %f, got %f", tt.y, y)
			}
		})
	}

	t.Run("missing eye corners", func(t *testing.T) {
		var face FaceLandmarks
		if _, _, ok := face.HeadOffset(); ok {
			t.Error("expected ok = false for coinciding eye corners")
		}
	})
}

func TestClosure(t *testing.T) {
	tests := []struct {
		ear, open, want float64
	}{
		{0.30, 0.30, 0},
		{0.40, 0.30, 0},
		{0.15, 0.30, 0.5},
		{0, 0.30, 1},
		{0.15, 0, 0.5}, // falls back to DefaultOpenEAR
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("ear=%.2f open=%.2f", tt.ear, tt.open), func(t *testing.T) {
			if got := Closure(tt.ear, tt.open); math.Abs(got-tt.want) > epsilon {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestFaceLandmarks_Measure(t *testing.T) {
	face := SyntheticFace(FacePose{HeadX: 0.1, HeadY: 0.6, LeftEAR: 0.3, RightEAR: 0.03})
	m, ok := face.Measure(0.3)
	if !ok {
		t.Fatal("Measure() ok = false")
	}

	if math.Abs(m.HeadX-0.1) > epsilon || math.Abs(m.HeadY-0.6) > epsilon {
		t.Errorf("unexpected head offset (%f,%f)", m.HeadX, m.HeadY)
	}
	if m.LeftClosed > epsilon {
		t.Errorf("expected open left eye, got closure %f", m.LeftClosed)
	}
	if math.Abs(m.RightClosed-0.9) > epsilon {
		t.Errorf("expected right closure 0.9, got %f", m.RightClosed)
	}
}

func TestFaceLandmarks_MeasureDegenerate(t *testing.T) {
	var collapsed FaceLandmarks
	if _, ok := collapsed.Measure(0.3); ok {
		t.Error("expected a collapsed mesh to be rejected")
	}

	// Outer eye corners on top of each other but eyes still measurable.
	face := SyntheticFace(NeutralPose())
	face.Points[RightEyeOuter] = face.Points[LeftEyeOuter]
	if _, ok := face.Measure(0.3); ok {
		t.Error("expected coinciding eye corners to be rejected")
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns configured faces", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetFaces([]FaceLandmarks{SyntheticFace(NeutralPose())})

		faces, err := mock.Detect(nil)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(faces) != 1 {
			t.Fatalf("expected 1 face, got %d", len(faces))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("returns empty when no faces set", func(t *testing.T) {
		mock := NewMockDetector()

		faces, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(faces) != 0 {
			t.Errorf("expected no faces, got %d", len(faces))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetFaces([]FaceLandmarks{SyntheticFace(NeutralPose())})
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		faces, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if faces != nil {
			t.Errorf("expected nil faces when error is set, got %v", faces)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		if err := NewMockDetector().Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestParseResponse(t *testing.T) {
	point := `{"x":0.5,"y":0.5,"z":0}`

	mesh := func(n int) string {
		return "[" + strings.TrimSuffix(strings.Repeat(point+",", n), ",") + "]"
	}

	t.Run("full mesh", func(t *testing.T) {
		line := fmt.Sprintf(`{"faces":[{"points":%s,"score":0.9}]}`, mesh(NumLandmarks))
		faces, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(faces) != 1 || faces[0].Score != 0.9 {
			t.Fatalf("unexpected faces %+v", faces)
		}
	})

	t.Run("mesh without iris points", func(t *testing.T) {
		line := fmt.Sprintf(`{"faces":[{"points":%s}]}`, mesh(468))
		faces, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(faces) != 1 {
			t.Fatalf("expected 1 face, got %d", len(faces))
		}
	})

	t.Run("truncated mesh is dropped", func(t *testing.T) {
		line := fmt.Sprintf(`{"faces":[{"points":%s}]}`, mesh(10))
		faces, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(faces) != 0 {
			t.Errorf("expected truncated mesh to be dropped, got %d faces", len(faces))
		}
	})

	t.Run("no face", func(t *testing.T) {
		faces, err := parseResponse([]byte(`{"faces":[]}`))
		if err != nil || len(faces) != 0 {
			t.Errorf("expected no faces and no error, got %d, %v", len(faces), err)
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error":"bad frame"}`)); err == nil {
			t.Error("expected error from service")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := parseResponse([]byte("not json")); err == nil {
			t.Error("expected parse error")
		}
	})
}
