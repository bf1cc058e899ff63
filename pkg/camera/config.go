// Package camera holds capture settings for a local V4L2 camera opened
// through OpenCV, plus named presets for common field conditions.
package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Config holds the capture parameters applied when the device is opened.
// Optional controls use a negative value to mean "leave the driver default".
type Config struct {
	Device int `yaml:"device" json:"device"` // /dev/videoN

	// === Resolution ===
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
	FPS    int `yaml:"fps" json:"fps"`

	// === Image controls, normalized 0-1 ===
	Brightness float64 `yaml:"brightness" json:"brightness"`
	Contrast   float64 `yaml:"contrast" json:"contrast"`
	Saturation float64 `yaml:"saturation" json:"saturation"`
	Gain       float64 `yaml:"gain" json:"gain"`

	// === Exposure ===
	// AutoExposure true hands exposure to the driver and ignores Exposure.
	AutoExposure bool    `yaml:"auto_exposure" json:"auto_exposure"`
	Exposure     float64 `yaml:"exposure" json:"exposure"` // normalized 0-1

	// BufferSize is the driver queue depth. 1 keeps latency lowest.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// Driver limits.
const (
	MaxWidth  = 1920
	MaxHeight = 1080
	MaxFPS    = 120
)

// Unset marks an optional control that should not be written.
const Unset = -1.0

// DefaultConfig returns driver defaults at 640x480@30.
func DefaultConfig() Config {
	return Config{
		Device:       0,
		Width:        640,
		Height:       480,
		FPS:          30,
		Brightness:   Unset,
		Contrast:     Unset,
		Saturation:   Unset,
		Gain:         Unset,
		AutoExposure: true,
		Exposure:     Unset,
		BufferSize:   1,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.FPS < 1 || c.FPS > MaxFPS {
		errors = append(errors, fmt.Sprintf("fps must be between 1 and %d", MaxFPS))
	}

	controls := []struct {
		name  string
		value float64
	}{
		{"brightness", c.Brightness},
		{"contrast", c.Contrast},
		{"saturation", c.Saturation},
		{"gain", c.Gain},
		{"exposure", c.Exposure},
	}
	for _, ctl := range controls {
		if ctl.value != Unset && (ctl.value < 0 || ctl.value > 1) {
			errors = append(errors, ctl.name+" must be unset or between 0.0 and 1.0")
		}
	}

	if !c.AutoExposure && c.Exposure == Unset {
		errors = append(errors, "manual exposure needs exposure set")
	}
	if c.BufferSize < 1 {
		errors = append(errors, "buffer_size must be at least 1")
	}

	return errors
}

// Apply writes the settings to an open capture.
func (c *Config) Apply(vc *gocv.VideoCapture) {
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.FPS))
	vc.Set(gocv.VideoCaptureBufferSize, float64(c.BufferSize))

	setIf(vc, gocv.VideoCaptureBrightness, c.Brightness)
	setIf(vc, gocv.VideoCaptureContrast, c.Contrast)
	setIf(vc, gocv.VideoCaptureSaturation, c.Saturation)
	setIf(vc, gocv.VideoCaptureGain, c.Gain)

	// V4L2 backend: 0.75 is aperture priority, 0.25 is manual.
	if c.AutoExposure {
		vc.Set(gocv.VideoCaptureAutoExposure, 0.75)
		return
	}
	vc.Set(gocv.VideoCaptureAutoExposure, 0.25)
	setIf(vc, gocv.VideoCaptureExposure, c.Exposure)
}

func setIf(vc *gocv.VideoCapture, prop gocv.VideoCaptureProperties, v float64) {
	if v != Unset {
		vc.Set(prop, v)
	}
}
