package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-vision/pkg/tracking"
	"gocv.io/x/gocv"
)

var green = HSVRange{Lower: [3]int{50, 100, 100}, Upper: [3]int{70, 255, 255}}

// frameWith draws filled green rectangles on a black 320x240 frame.
func frameWith(rects ...image.Rectangle) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
	for _, r := range rects {
		gocv.Rectangle(&m, r, color.RGBA{G: 255}, -1)
	}
	return m
}

func TestMaskAndFindObjects(t *testing.T) {
	frame := frameWith(image.Rect(20, 30, 80, 90), image.Rect(150, 100, 170, 110))
	defer frame.Close()

	mask, err := Masker{Ranges: []HSVRange{green}}.Mask(frame)
	require.NoError(t, err)
	defer mask.Close()

	objs := FindObjects(mask)
	require.Len(t, objs, 2)

	var big = objs[0]
	if objs[1].Area > big.Area {
		big = objs[1]
	}
	assert.Equal(t, image.Pt(20, 30), big.Box.Min)
	assert.InDelta(t, 60*60, big.Area, 200)
	assert.InDelta(t, big.Area, big.HullArea, 1, "a rectangle is its own hull")
	assert.GreaterOrEqual(t, len(big.Hull), 4)
	assert.InDelta(t, big.Area, big.Rect.Area(), 200)
}

func TestMaskIgnoresOtherColours(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(10, 10, 50, 50), color.RGBA{R: 255}, -1)

	mask, err := Masker{Ranges: []HSVRange{green}, Open: 3, Close: 3}.Mask(frame)
	require.NoError(t, err)
	defer mask.Close()

	assert.Empty(t, FindObjects(mask))
}

func TestMaskMultipleRanges(t *testing.T) {
	frame := frameWith(image.Rect(20, 30, 80, 90))
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(200, 100, 260, 160), color.RGBA{B: 255}, -1)

	blue := HSVRange{Lower: [3]int{110, 100, 100}, Upper: [3]int{130, 255, 255}}
	mask, err := Masker{Ranges: []HSVRange{green, blue}}.Mask(frame)
	require.NoError(t, err)
	defer mask.Close()

	assert.Len(t, FindObjects(mask), 2)
}

func TestMaskErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	m, err := Masker{Ranges: []HSVRange{green}}.Mask(empty)
	m.Close()
	assert.Error(t, err)

	frame := frameWith()
	defer frame.Close()
	m, err = Masker{}.Mask(frame)
	m.Close()
	assert.Error(t, err)
}

func TestHSVRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       HSVRange
		wantErr bool
	}{
		{"ok", green, false},
		{"inverted", HSVRange{Lower: [3]int{90, 0, 0}, Upper: [3]int{50, 255, 255}}, true},
		{"too high", HSVRange{Upper: [3]int{300, 255, 255}}, true},
		{"negative", HSVRange{Lower: [3]int{-1, 0, 0}, Upper: [3]int{10, 10, 10}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnnotateAndEncode(t *testing.T) {
	frame := frameWith(image.Rect(20, 30, 80, 90))
	defer frame.Close()

	mask, err := Masker{Ranges: []HSVRange{green}}.Mask(frame)
	require.NoError(t, err)
	defer mask.Close()

	Annotate(&frame, FindObjects(mask), 29.7)

	data, err := Encoder{Quality: 80}.Encode(frame)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)

	half, err := Encoder{Quality: 80, Scale: 0.5}.Encode(frame)
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(half))
	require.NoError(t, err)
	assert.Equal(t, 160, cfg.Width)
}

func TestAnnotateOverlay(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	box := image.Rect(20, 30, 80, 90)
	obj := tracking.Object{
		Contour: []image.Point{box.Min, {80, 30}, box.Max, {20, 90}},
		Box:     box,
	}
	Annotate(&frame, []tracking.Object{obj}, 29.7)

	// OpenCV stores BGR.
	isYellow := func(v gocv.Vecb) bool { return v[0] == 0 && v[1] == 255 && v[2] == 255 }
	isCyan := func(v gocv.Vecb) bool { return v[0] == 255 && v[1] == 255 && v[2] == 0 }

	edge := 0
	for y := 26; y <= 34; y++ {
		if isYellow(frame.GetVecbAt(y, 50)) {
			edge++
		}
	}
	assert.GreaterOrEqual(t, edge, 2, "box edge is drawn 2 px wide")

	text := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			if isCyan(frame.GetVecbAt(y, x)) {
				text++
			}
		}
	}
	assert.Positive(t, text, "fps text is cyan")
}
