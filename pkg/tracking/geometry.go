package tracking

import "math"

// Camera describes the frame and lens used to project pixel positions.
// FOVs are in degrees.
type Camera struct {
	Width  int
	Height int
	HFOV   float64
	VFOV   float64
}

// Normalize maps a pixel position to [-1, 1] on both axes with the origin at
// the frame centre and +y pointing up. Pixel centres are at +0.5.
func (c Camera) Normalize(p Point) (nx, ny float64) {
	w, h := float64(c.Width), float64(c.Height)
	nx = (2 / w) * (p.X - (w/2 - 0.5))
	ny = (2 / h) * ((h/2 - 0.5) - p.Y)
	return nx, ny
}

// Viewport returns the width and height of the image plane at unit distance.
func (c Camera) Viewport() (vpw, vph float64) {
	vpw = 2 * math.Tan(radians(c.HFOV)/2)
	vph = 2 * math.Tan(radians(c.VFOV)/2)
	return vpw, vph
}

// Project maps normalized coordinates onto the unit-distance image plane.
func (c Camera) Project(nx, ny float64) (x, y float64) {
	vpw, vph := c.Viewport()
	return vpw / 2 * nx, vph / 2 * ny
}

// Bearing is the steering angle in radians for plane coordinate x.
// It is atan2(1, x): pi/2 when the target is dead ahead.
func (c Camera) Bearing(x float64) float64 {
	return math.Atan2(1, x)
}

// Solve builds the full output record for an aggregated center.
func (c Camera) Solve(center Point) OutputData {
	nx, ny := c.Normalize(center)
	x, _ := c.Project(nx, ny)
	return OutputData{
		RawCenter:   [2]float64{center.X, center.Y},
		NormalCoord: [2]float64{nx, ny},
		Angle:       c.Bearing(x),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
