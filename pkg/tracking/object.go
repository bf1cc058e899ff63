// Package tracking holds the per-frame target model: candidate objects,
// target selection and aggregation, and the normalized geometry sent to
// the robot controller.
//
// Nothing here touches OpenCV. Contour measurements are taken once when an
// Object is built (see pkg/vision) and carried as plain values.
package tracking

import "image"

// RotatedRect is the minimum-area rectangle around a contour.
type RotatedRect struct {
	Center image.Point
	Width  int
	Height int
	Angle  float64 // degrees
}

// Area returns Width*Height.
func (r RotatedRect) Area() float64 {
	return float64(r.Width) * float64(r.Height)
}

// Object is one candidate target found in a single frame.
// It has no identity across frames and is never modified after creation.
type Object struct {
	Contour []image.Point   // outer boundary
	Hull    []image.Point   // convex hull of Contour
	Rect    RotatedRect     // minimum-area rectangle
	Box     image.Rectangle // axis-aligned bounding box

	Area     float64 // contour area
	HullArea float64 // convex hull area
}

// Point is a pixel-space position. The zero value means "no target".
type Point struct {
	X, Y float64
}

// IsZero reports whether p is the no-target sentinel.
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// OutputData is the record delivered to the Output module.
type OutputData struct {
	RawCenter   [2]float64 `json:"raw_center"`
	NormalCoord [2]float64 `json:"normal_coord"`
	Angle       float64    `json:"angle"`
}

// Stats summarizes frame loop throughput for status reporting.
type Stats struct {
	Input       string  `json:"input"`
	FPS         float64 `json:"fps"`
	MeanFPS     float64 `json:"mean_fps"`
	JitterMs    float64 `json:"jitter_ms"`
	Frames      uint64  `json:"frames"`
	Emitted     uint64  `json:"emitted"`
	Failures    uint64  `json:"acquire_failures"`
	Candidates  int     `json:"candidates"`
	Selected    int     `json:"selected"`
	OutputDrops uint64  `json:"output_drops"`
}
