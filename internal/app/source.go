package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/detector"
	"github.com/ayusman/nayana/internal/signal"
)

type cameraSourceConfig struct {
	camera   capture.Camera
	detector detector.Detector
	changes  *capture.ChangeDetector
	openEAR  float64
	mirror   bool
	logger   zerolog.Logger
	onJPEG   func([]byte)
}

// cameraSource turns camera frames into signal frames at the camera's frame rate.
// Read and detection failures yield a no-face frame so the tick cadence holds.
type cameraSource struct {
	cameraSourceConfig
	ticker *time.Ticker
	tick   int64
}

func newCameraSource(config cameraSourceConfig) *cameraSource {
	fps := config.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return &cameraSource{
		cameraSourceConfig: config,
		ticker:             time.NewTicker(time.Second / time.Duration(fps)),
	}
}

// Next waits for the next tick and measures the current camera frame.
func (s *cameraSource) Next(ctx context.Context) (signal.Frame, error) {
	select {
	case <-ctx.Done():
		return signal.Frame{}, ctx.Err()
	case <-s.ticker.C:
	}

	tick := s.tick
	s.tick++

	frame, err := s.camera.ReadFrame()
	if err != nil {
		s.logger.Error().Err(err).Int64("tick", tick).Msg("read frame")
		return signal.NoFace(tick), nil
	}
	defer frame.Close()

	if s.mirror {
		capture.Mirror(frame)
	}
	s.preview(frame)

	faces, err := s.detector.Detect(frame)
	if err != nil {
		s.logger.Error().Err(err).Int64("tick", tick).Msg("detect face")
		return signal.NoFace(tick), nil
	}

	return measure(tick, faces, s.openEAR), nil
}

func (s *cameraSource) preview(frame *gocv.Mat) {
	if s.onJPEG == nil {
		return
	}
	if s.changes != nil {
		if changed, _ := s.changes.Changed(frame); !changed {
			return
		}
	}
	data, err := capture.EncodeJPEG(frame)
	if err != nil {
		s.logger.Debug().Err(err).Msg("encode preview")
		return
	}
	s.onJPEG(data)
}

// Close stops the tick timer.
func (s *cameraSource) Close() {
	s.ticker.Stop()
}

// measure converts the best-scoring face into a signal frame. A degenerate mesh counts
// as no face.
func measure(tick int64, faces []detector.FaceLandmarks, openEAR float64) signal.Frame {
	if len(faces) == 0 {
		return signal.NoFace(tick)
	}

	best := 0
	for i := range faces {
		if faces[i].Score > faces[best].Score {
			best = i
		}
	}

	m, ok := faces[best].Measure(openEAR)
	if !ok {
		return signal.NoFace(tick)
	}
	return signal.Frame{
		Tick:        tick,
		Head:        signal.Vec2{X: m.HeadX, Y: m.HeadY},
		LeftClosed:  m.LeftClosed,
		RightClosed: m.RightClosed,
		FaceFound:   true,
	}
}
