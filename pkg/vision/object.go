// Package vision adapts OpenCV (gocv) to the tracking model: colour masking,
// contour extraction, frame annotation and JPEG encoding.
package vision

import (
	"image"

	"github.com/teslashibe/go-vision/pkg/tracking"
	"gocv.io/x/gocv"
)

// NewObject measures one contour. Areas are computed here, once, so the rest
// of the pipeline works on plain values.
func NewObject(contour gocv.PointVector) tracking.Object {
	pts := contour.ToPoints()
	hull := convexHull(contour, pts)

	hv := gocv.NewPointVectorFromPoints(hull)
	defer hv.Close()

	rr := gocv.MinAreaRect(contour)

	return tracking.Object{
		Contour: pts,
		Hull:    hull,
		Rect: tracking.RotatedRect{
			Center: rr.Center,
			Width:  rr.Width,
			Height: rr.Height,
			Angle:  rr.Angle,
		},
		Box:      gocv.BoundingRect(contour),
		Area:     gocv.ContourArea(contour),
		HullArea: gocv.ContourArea(hv),
	}
}

// FindObjects extracts the external contours of a binary mask.
func FindObjects(mask gocv.Mat) []tracking.Object {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	objs := make([]tracking.Object, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if c.Size() == 0 {
			continue
		}
		objs = append(objs, NewObject(c))
	}
	return objs
}

func convexHull(contour gocv.PointVector, pts []image.Point) []image.Point {
	if len(pts) < 3 {
		return append([]image.Point(nil), pts...)
	}

	idx := gocv.NewMat()
	defer idx.Close()
	gocv.ConvexHull(contour, &idx, false, false)

	hull := make([]image.Point, 0, idx.Rows())
	for i := 0; i < idx.Rows(); i++ {
		j := int(idx.GetIntAt(i, 0))
		if j >= 0 && j < len(pts) {
			hull = append(hull, pts[j])
		}
	}
	return hull
}
