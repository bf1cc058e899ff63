// Package modules defines the four capability contracts the frame loop is
// assembled from. Concrete variants live in the input, threshold, filter and
// output subpackages; pkg/pipeline is the only place that maps variant names
// to constructors.
package modules

import (
	"context"
	"errors"
	"io"

	"github.com/teslashibe/go-vision/pkg/tracking"
	"gocv.io/x/gocv"
)

// ErrNoFrame is returned by Input.Read when no frame is available right now.
// The loop retries with backoff.
var ErrNoFrame = errors.New("modules: no frame available")

// Input produces BGR frames of the configured width and height.
// On success the caller owns the returned Mat and must Close it; on error
// the Mat is the zero value and must not be used.
type Input interface {
	Name() string
	Read(ctx context.Context) (gocv.Mat, error)
	io.Closer
}

// Threshold turns a frame into candidate objects. It must not modify frame.
// Errors are fatal to the loop.
type Threshold interface {
	Name() string
	Detect(frame gocv.Mat) ([]tracking.Object, error)
}

// Filter is a pure predicate over one object.
type Filter interface {
	Name() string
	Accept(obj tracking.Object) bool
}

// Output delivers one record to an external consumer.
type Output interface {
	Name() string
	Deliver(ctx context.Context, data tracking.OutputData) error
	io.Closer
}

// ApplyFilters keeps the objects every filter accepts, in their original
// order. Filters run in slice order and stop at the first rejection.
func ApplyFilters(objs []tracking.Object, filters []Filter) []tracking.Object {
	if len(filters) == 0 {
		return objs
	}
	out := make([]tracking.Object, 0, len(objs))
	for _, o := range objs {
		if acceptAll(o, filters) {
			out = append(out, o)
		}
	}
	return out
}

func acceptAll(o tracking.Object, filters []Filter) bool {
	for _, f := range filters {
		if !f.Accept(o) {
			return false
		}
	}
	return true
}
