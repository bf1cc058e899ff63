package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/video"
	"gocv.io/x/gocv"
)

// frameSource is the part of video.Client the input uses.
type frameSource interface {
	Next(ctx context.Context, after uint64) ([]byte, uint64, error)
	Close() error
}

// WebRTC reads decoded frames from a robot's WebRTC camera stream. When no
// frame arrives for reopenAfter reads in a row the peer is torn down and the
// next Read signals a new session.
type WebRTC struct {
	client  frameSource
	dial    func(ctx context.Context) (frameSource, error)
	seq     uint64
	misses  int
	redials int
	wait    time.Duration
	width   int
	height  int
	logger  *slog.Logger
}

// NewWebRTC connects to input.webrtc.signalling and waits for the track.
func NewWebRTC(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*WebRTC, error) {
	doc := vc.Doc
	url, err := doc.String("input.webrtc.signalling")
	if err != nil {
		return nil, err
	}

	cfg := video.DefaultConfig("")
	cfg.SignallingURL = url
	if cfg.Producer, err = doc.StringOr("input.webrtc.producer", cfg.Producer); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = doc.DurationOr("input.webrtc.timeout", cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	cfg.DecodeInterval = time.Second / time.Duration(vc.Input.FPS)

	ffmpeg, err := doc.StringOr("input.webrtc.ffmpeg", "ffmpeg")
	if err != nil {
		return nil, err
	}

	w := &WebRTC{
		wait:   2 * cfg.DecodeInterval,
		width:  vc.Input.Width,
		height: vc.Input.Height,
		logger: logger,
	}
	w.dial = func(ctx context.Context) (frameSource, error) {
		client := video.NewClient(cfg, video.FFmpegDecoder{Binary: ffmpeg}, logger)
		if err := client.Connect(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("input: webrtc: %w", err)
		}
		return client, nil
	}
	if w.client, err = w.dial(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WebRTC) Name() string { return "webrtc" }

// Read waits up to two frame periods for a newer decoded frame.
func (w *WebRTC) Read(ctx context.Context) (gocv.Mat, error) {
	if w.client == nil {
		w.redials++
		client, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return gocv.Mat{}, ctx.Err()
			}
			return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
		}
		w.client, w.seq = client, 0
		w.logger.Info("webrtc reconnected", "attempts", w.redials)
	}

	wctx, cancel := context.WithTimeout(ctx, w.wait)
	defer cancel()

	data, seq, err := w.client.Next(wctx, w.seq)
	switch {
	case ctx.Err() != nil:
		return gocv.Mat{}, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, video.ErrClosed):
		w.missed()
		return gocv.Mat{}, modules.ErrNoFrame
	case err != nil:
		return gocv.Mat{}, err
	}
	w.misses = 0
	w.seq = seq

	frame, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
	}
	if frame.Empty() {
		frame.Close()
		return gocv.Mat{}, fmt.Errorf("%w: undecodable frame", modules.ErrNoFrame)
	}
	return fit(frame, w.width, w.height), nil
}

func (w *WebRTC) missed() {
	w.misses++
	if w.misses < reopenAfter {
		return
	}
	w.logger.Warn("webrtc stalled, reconnecting", "misses", w.misses)
	w.client.Close()
	w.client = nil
	w.misses = 0
}

func (w *WebRTC) Close() error {
	if w.client == nil {
		return nil
	}
	err := w.client.Close()
	w.client = nil
	return err
}
