package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// HSVRange is an inclusive OpenCV HSV range. Hue is 0-179, S and V 0-255.
type HSVRange struct {
	Lower [3]int
	Upper [3]int
}

// Validate checks component bounds.
func (r HSVRange) Validate() error {
	for i := 0; i < 3; i++ {
		if r.Lower[i] < 0 || r.Upper[i] > 255 {
			return fmt.Errorf("vision: channel %d out of range [0, 255]: %v..%v", i, r.Lower[i], r.Upper[i])
		}
		if r.Lower[i] > r.Upper[i] {
			return fmt.Errorf("vision: channel %d lower %d above upper %d", i, r.Lower[i], r.Upper[i])
		}
	}
	return nil
}

func (r HSVRange) scalars() (gocv.Scalar, gocv.Scalar) {
	lo := gocv.NewScalar(float64(r.Lower[0]), float64(r.Lower[1]), float64(r.Lower[2]), 0)
	hi := gocv.NewScalar(float64(r.Upper[0]), float64(r.Upper[1]), float64(r.Upper[2]), 0)
	return lo, hi
}

// Masker builds a binary mask of the pixels falling in any of Ranges,
// optionally cleaned with a morphological open then close.
type Masker struct {
	Ranges []HSVRange
	Open   int // kernel size, 0 disables
	Close  int // kernel size, 0 disables
}

// Mask returns a new single-channel mask. frame is not modified.
func (m Masker) Mask(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), errors.New("vision: empty frame")
	}
	if len(m.Ranges) == 0 {
		return gocv.NewMat(), errors.New("vision: no colour ranges")
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	part := gocv.NewMat()
	defer part.Close()

	for i, r := range m.Ranges {
		lo, hi := r.scalars()
		if i == 0 {
			gocv.InRangeWithScalar(hsv, lo, hi, &mask)
			continue
		}
		gocv.InRangeWithScalar(hsv, lo, hi, &part)
		gocv.BitwiseOr(mask, part, &mask)
	}

	morph(&mask, gocv.MorphOpen, m.Open)
	morph(&mask, gocv.MorphClose, m.Close)
	return mask, nil
}

func morph(mask *gocv.Mat, op gocv.MorphType, size int) {
	if size <= 0 {
		return
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()
	gocv.MorphologyEx(*mask, mask, op, kernel)
}
