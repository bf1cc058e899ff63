package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Encoder turns annotated frames into JPEG blocks.
type Encoder struct {
	Quality int     // 1-100
	Scale   float64 // (0, 1], 1 keeps the frame size
}

// Encode returns the JPEG bytes for frame.
func (e Encoder) Encode(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, errors.New("vision: encode empty frame")
	}

	src := frame
	if e.Scale > 0 && e.Scale < 1 {
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(frame, &small, image.Point{}, e.Scale, e.Scale, gocv.InterpolationArea)
		src = small
	}

	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = 75
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, src, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("vision: jpeg encode: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
