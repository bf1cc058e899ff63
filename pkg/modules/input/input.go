// Package input holds the frame source variants.
package input

import (
	"image"

	"github.com/teslashibe/go-vision/pkg/modules"
	"gocv.io/x/gocv"
)

var (
	_ modules.Input = (*Camera)(nil)
	_ modules.Input = (*Stream)(nil)
	_ modules.Input = (*Images)(nil)
	_ modules.Input = (*WebRTC)(nil)
)

// reopenAfter is how many consecutive empty reads make a device or peer
// input drop its connection and open a new one.
const reopenAfter = 5

// grabber is the part of gocv.VideoCapture the inputs use.
type grabber interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// fit resizes frame to w x h when a source ignores the requested size.
// The input Mat is consumed.
func fit(frame gocv.Mat, w, h int) gocv.Mat {
	if frame.Cols() == w && frame.Rows() == h {
		return frame
	}
	out := gocv.NewMat()
	gocv.Resize(frame, &out, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	frame.Close()
	return out
}
