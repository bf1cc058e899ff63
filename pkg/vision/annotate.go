package vision

import (
	"image"
	"image/color"
	"strconv"

	"github.com/teslashibe/go-vision/pkg/tracking"
	"gocv.io/x/gocv"
)

// Overlay colours.
var (
	ContourColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	BoxColor     = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	TextColor    = color.RGBA{R: 0, G: 255, B: 255, A: 0}
)

// LineThickness applies to contours, boxes and text.
const LineThickness = 2

// Annotate draws the selected targets and the whole-number frame rate onto
// frame. The FPS text sits at (10, height/8).
func Annotate(frame *gocv.Mat, selected []tracking.Object, fps float64) {
	if len(selected) > 0 {
		contours := make([][]image.Point, 0, len(selected))
		for _, o := range selected {
			contours = append(contours, o.Contour)
		}
		pv := gocv.NewPointsVectorFromPoints(contours)
		gocv.DrawContours(frame, pv, -1, ContourColor, LineThickness)
		pv.Close()

		for _, o := range selected {
			gocv.Rectangle(frame, o.Box, BoxColor, LineThickness)
		}
	}

	org := image.Pt(10, frame.Rows()/8)
	gocv.PutText(frame, strconv.Itoa(int(fps)), org, gocv.FontHersheyDuplex, 0.5, TextColor, LineThickness)
}
