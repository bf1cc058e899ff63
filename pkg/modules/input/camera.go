package input

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-vision/pkg/camera"
	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"gocv.io/x/gocv"
)

// Camera reads from a local V4L2 device. After reopenAfter consecutive
// empty grabs the capture is dropped and the next Read opens the device
// again, which recovers an unplugged and replugged camera.
type Camera struct {
	vc      grabber
	open    func() (grabber, error)
	misses  int
	reopens int
	cfg     camera.Config
	width   int
	height  int
	logger  *slog.Logger
}

// CameraConfig builds the capture settings from the input group: the named
// preset first, then any explicit overrides. Frame size and rate always come
// from input.width, input.height and input.fps.
func CameraConfig(vc *settings.VisionConfig) (camera.Config, error) {
	doc := vc.Doc
	preset, err := doc.StringOr("input.camera.preset", camera.PresetDefault)
	if err != nil {
		return camera.Config{}, err
	}
	p := camera.GetPreset(preset)
	if p == nil {
		return camera.Config{}, &settings.KeyError{
			Key:  "input.camera.preset",
			Want: "one of " + strings.Join(camera.PresetNames(), ", "),
			Got:  preset,
			Err:  settings.ErrInvalidValue,
		}
	}
	cfg := *p

	cfg.Width, cfg.Height, cfg.FPS = vc.Input.Width, vc.Input.Height, vc.Input.FPS
	if vc.Input.Brightness != nil {
		cfg.Brightness = *vc.Input.Brightness
	}
	if vc.Input.Contrast != nil {
		cfg.Contrast = *vc.Input.Contrast
	}

	if cfg.Device, err = doc.IntOr("input.camera.device", cfg.Device); err != nil {
		return cfg, err
	}
	if cfg.Exposure, err = doc.FloatOr("input.camera.exposure", cfg.Exposure); err != nil {
		return cfg, err
	}
	if doc.Has("input.camera.exposure") {
		cfg.AutoExposure = false
	}
	if cfg.AutoExposure, err = doc.BoolOr("input.camera.auto_exposure", cfg.AutoExposure); err != nil {
		return cfg, err
	}
	if cfg.Gain, err = doc.FloatOr("input.camera.gain", cfg.Gain); err != nil {
		return cfg, err
	}
	if cfg.BufferSize, err = doc.IntOr("input.camera.buffer_size", cfg.BufferSize); err != nil {
		return cfg, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, &settings.KeyError{
			Key:  "input.camera",
			Want: strings.Join(errs, "; "),
			Got:  cfg.Device,
			Err:  settings.ErrInvalidValue,
		}
	}
	return cfg, nil
}

// NewCamera opens the device and applies the capture settings.
func NewCamera(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Camera, error) {
	cfg, err := CameraConfig(vc)
	if err != nil {
		return nil, err
	}

	c := &Camera{cfg: cfg, width: vc.Input.Width, height: vc.Input.Height, logger: logger}
	c.open = c.openDevice
	if c.vc, err = c.open(); err != nil {
		return nil, err
	}

	logger.Info("camera opened",
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"fps", cfg.FPS,
		"auto_exposure", cfg.AutoExposure)
	return c, nil
}

func (c *Camera) openDevice() (grabber, error) {
	capture, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("input: open camera %d: %w", c.cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("input: camera %d did not open", c.cfg.Device)
	}
	c.cfg.Apply(capture)
	return capture, nil
}

func (c *Camera) Name() string { return "camera" }

// Read grabs the next frame. An empty grab is ErrNoFrame.
func (c *Camera) Read(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, err
	}
	if c.vc == nil {
		c.reopens++
		g, err := c.open()
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
		}
		c.vc = g
		c.logger.Info("camera reopened", "device", c.cfg.Device, "attempts", c.reopens)
	}

	frame := gocv.NewMat()
	if ok := c.vc.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		c.misses++
		if c.misses >= reopenAfter {
			c.logger.Warn("camera stalled, reopening", "device", c.cfg.Device, "misses", c.misses)
			c.vc.Close()
			c.vc = nil
			c.misses = 0
		}
		return gocv.Mat{}, modules.ErrNoFrame
	}
	c.misses = 0
	return fit(frame, c.width, c.height), nil
}

func (c *Camera) Close() error {
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}
