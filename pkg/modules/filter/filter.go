// Package filter holds the candidate predicates. Each compares one measure
// of an object against an exclusive (min, max) window.
//
// The package has no OpenCV dependency; pkg/pipeline checks that every type
// here satisfies modules.Filter.
package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
)

// Window is an exclusive range.
type Window struct {
	Min, Max float64
}

// Contains reports Min < v < Max.
func (w Window) Contains(v float64) bool {
	return v > w.Min && v < w.Max
}

func readWindow(vc *settings.VisionConfig, group string) (Window, error) {
	lo, hi, err := vc.Doc.Bounds(group)
	if err != nil {
		return Window{}, err
	}
	return Window{Min: lo, Max: hi}, nil
}

// ContourArea accepts objects whose convex hull covers a percentage of the
// frame strictly inside the window.
type ContourArea struct {
	Window
	frameArea float64
}

// NewContourArea reads filter.contourarea.{min,max}.
func NewContourArea(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*ContourArea, error) {
	w, err := readWindow(vc, "filter.contourarea")
	if err != nil {
		return nil, err
	}
	logger.Debug("contourarea filter", "min", w.Min, "max", w.Max)
	return &ContourArea{
		Window:    w,
		frameArea: float64(vc.Input.Width) * float64(vc.Input.Height),
	}, nil
}

func (f *ContourArea) Name() string { return "contourarea" }

// Percent is the hull area as a percentage of the frame.
func (f *ContourArea) Percent(obj tracking.Object) float64 {
	return obj.HullArea / f.frameArea * 100
}

func (f *ContourArea) Accept(obj tracking.Object) bool {
	return f.Contains(f.Percent(obj))
}

// PercentFilled accepts objects whose contour fills a percentage of their
// minimum-area rectangle strictly inside the window. Degenerate rectangles
// are rejected.
type PercentFilled struct {
	Window
}

// NewPercentFilled reads filter.percentfilled.{min,max}.
func NewPercentFilled(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*PercentFilled, error) {
	w, err := readWindow(vc, "filter.percentfilled")
	if err != nil {
		return nil, err
	}
	logger.Debug("percentfilled filter", "min", w.Min, "max", w.Max)
	return &PercentFilled{Window: w}, nil
}

func (f *PercentFilled) Name() string { return "percentfilled" }

func (f *PercentFilled) Accept(obj tracking.Object) bool {
	rect := obj.Rect.Area()
	if rect <= 0 {
		return false
	}
	return f.Contains(obj.Area / rect * 100)
}

// AspectRatio accepts objects whose bounding box width/height ratio is
// strictly inside the window.
type AspectRatio struct {
	Window
}

// NewAspectRatio reads filter.aspectratio.{min,max}.
func NewAspectRatio(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*AspectRatio, error) {
	w, err := readWindow(vc, "filter.aspectratio")
	if err != nil {
		return nil, err
	}
	if w.Min < 0 {
		return nil, fmt.Errorf("filter.aspectratio.min: must not be negative")
	}
	logger.Debug("aspectratio filter", "min", w.Min, "max", w.Max)
	return &AspectRatio{Window: w}, nil
}

func (f *AspectRatio) Name() string { return "aspectratio" }

func (f *AspectRatio) Accept(obj tracking.Object) bool {
	h := obj.Box.Dy()
	if h == 0 {
		return false
	}
	return f.Contains(float64(obj.Box.Dx()) / float64(h))
}
