package threshold

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/vision"
)

// DefaultTolerance is the HSV half-width used around a hex colour.
var DefaultTolerance = [3]int{10, 80, 80}

// HexRanges converts a #rrggbb colour to OpenCV HSV ranges of the given
// half-width. Hue wraps at 180, so a red can yield two ranges.
func HexRanges(hex string, tol [3]int) ([]vision.HSVRange, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("threshold: colour %q: %w", hex, err)
	}
	h, s, v := c.Hsv()
	hue := int(h/2+0.5) % 180
	sat := int(s*255 + 0.5)
	val := int(v*255 + 0.5)

	lo := [3]int{hue - tol[0], clamp(sat-tol[1], 0, 255), clamp(val-tol[2], 0, 255)}
	hi := [3]int{hue + tol[0], clamp(sat+tol[1], 0, 255), clamp(val+tol[2], 0, 255)}

	switch {
	case tol[0] >= 90:
		lo[0], hi[0] = 0, 179
		return []vision.HSVRange{{Lower: lo, Upper: hi}}, nil
	case lo[0] < 0:
		a := vision.HSVRange{Lower: [3]int{0, lo[1], lo[2]}, Upper: hi}
		b := vision.HSVRange{Lower: [3]int{180 + lo[0], lo[1], lo[2]}, Upper: [3]int{179, hi[1], hi[2]}}
		return []vision.HSVRange{a, b}, nil
	case hi[0] > 179:
		a := vision.HSVRange{Lower: lo, Upper: [3]int{179, hi[1], hi[2]}}
		b := vision.HSVRange{Lower: [3]int{0, lo[1], lo[2]}, Upper: [3]int{hi[0] - 180, hi[1], hi[2]}}
		return []vision.HSVRange{a, b}, nil
	}
	return []vision.HSVRange{{Lower: lo, Upper: hi}}, nil
}

// NewHexColor reads threshold.hexcolor.colors and an optional tolerance.
func NewHexColor(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Color, error) {
	doc := vc.Doc
	colors, err := doc.Strings("threshold.hexcolor.colors")
	if err != nil {
		return nil, err
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("threshold.hexcolor.colors: at least one colour required")
	}

	tol := DefaultTolerance
	if doc.Has("threshold.hexcolor.tolerance") {
		t, err := doc.Ints("threshold.hexcolor.tolerance", 3)
		if err != nil {
			return nil, err
		}
		copy(tol[:], t)
	}

	var ranges []vision.HSVRange
	for _, hex := range colors {
		rs, err := HexRanges(hex, tol)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rs...)
	}

	opening, closing, err := readMorph(doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("hexcolor threshold", "colors", colors, "ranges", len(ranges))
	return NewColor("hexcolor", ranges, opening, closing)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
