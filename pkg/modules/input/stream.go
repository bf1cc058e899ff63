package input

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"gocv.io/x/gocv"
)

// Stream reads a network stream (RTSP, HTTP MJPEG) or a video file.
// A failed read drops the capture; the next Read reopens it.
type Stream struct {
	url    string
	width  int
	height int
	logger *slog.Logger

	vc *gocv.VideoCapture
}

// NewStream opens input.stream.url.
func NewStream(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Stream, error) {
	url, err := vc.Doc.String("input.stream.url")
	if err != nil {
		return nil, err
	}
	s := &Stream{url: url, width: vc.Input.Width, height: vc.Input.Height, logger: logger}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stream) open() error {
	capture, err := gocv.VideoCaptureFile(s.url)
	if err != nil {
		return fmt.Errorf("input: open stream %s: %w", s.url, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("input: stream %s did not open", s.url)
	}
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	s.vc = capture
	s.logger.Info("stream opened", "url", s.url)
	return nil
}

func (s *Stream) Name() string { return "stream" }

// Read returns the next decoded frame.
func (s *Stream) Read(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, err
	}
	if s.vc == nil {
		if err := s.open(); err != nil {
			return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
		}
	}

	frame := gocv.NewMat()
	if ok := s.vc.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		s.vc.Close()
		s.vc = nil
		return gocv.Mat{}, modules.ErrNoFrame
	}
	return fit(frame, s.width, s.height), nil
}

func (s *Stream) Close() error {
	if s.vc == nil {
		return nil
	}
	err := s.vc.Close()
	s.vc = nil
	return err
}
