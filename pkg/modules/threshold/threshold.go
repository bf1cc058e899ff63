// Package threshold holds the colour segmentation variants. Each one builds
// an HSV mask and returns the external contours of it as tracking objects.
package threshold

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
	"github.com/teslashibe/go-vision/pkg/vision"
	"gocv.io/x/gocv"
)

var _ modules.Threshold = (*Color)(nil)

// Color thresholds a frame against one or more HSV ranges.
type Color struct {
	name   string
	masker vision.Masker
}

// NewColor builds a threshold from explicit ranges.
func NewColor(name string, ranges []vision.HSVRange, opening, closing int) (*Color, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("threshold %s: no colour ranges", name)
	}
	for i, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("threshold %s: range %d: %w", name, i, err)
		}
	}
	return &Color{
		name:   name,
		masker: vision.Masker{Ranges: ranges, Open: opening, Close: closing},
	}, nil
}

func (c *Color) Name() string { return c.name }

// Ranges returns the HSV ranges in use.
func (c *Color) Ranges() []vision.HSVRange { return c.masker.Ranges }

// Detect masks frame and extracts one object per external contour.
func (c *Color) Detect(frame gocv.Mat) ([]tracking.Object, error) {
	mask, err := c.masker.Mask(frame)
	defer mask.Close()
	if err != nil {
		return nil, fmt.Errorf("threshold %s: %w", c.name, err)
	}
	return vision.FindObjects(mask), nil
}

// NewSimpleColor reads one range from threshold.colorl and threshold.coloru.
func NewSimpleColor(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Color, error) {
	r, err := readRange(vc.Doc, "threshold.colorl", "threshold.coloru")
	if err != nil {
		return nil, err
	}
	opening, closing, err := readMorph(vc.Doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("simplecolor threshold", "lower", r.Lower, "upper", r.Upper)
	return NewColor("simplecolor", []vision.HSVRange{r}, opening, closing)
}

// NewComplexColor ORs every range in threshold.complexcolor.ranges.
func NewComplexColor(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Color, error) {
	groups, err := vc.Doc.Maps("threshold.complexcolor.ranges")
	if err != nil {
		return nil, err
	}
	ranges := make([]vision.HSVRange, 0, len(groups))
	for _, g := range groups {
		r, err := readRange(g, "lower", "upper")
		if err != nil {
			return nil, fmt.Errorf("threshold.complexcolor.ranges: %w", err)
		}
		ranges = append(ranges, r)
	}
	opening, closing, err := readMorph(vc.Doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("complexcolor threshold", "ranges", len(ranges))
	return NewColor("complexcolor", ranges, opening, closing)
}

func readRange(doc *settings.Document, lowerKey, upperKey string) (vision.HSVRange, error) {
	var r vision.HSVRange
	lower, err := doc.Ints(lowerKey, 3)
	if err != nil {
		return r, err
	}
	upper, err := doc.Ints(upperKey, 3)
	if err != nil {
		return r, err
	}
	copy(r.Lower[:], lower)
	copy(r.Upper[:], upper)
	return r, nil
}

func readMorph(doc *settings.Document) (opening, closing int, err error) {
	if opening, err = doc.IntOr("threshold.morph.open", 0); err != nil {
		return 0, 0, err
	}
	if closing, err = doc.IntOr("threshold.morph.close", 0); err != nil {
		return 0, 0, err
	}
	return opening, closing, nil
}
