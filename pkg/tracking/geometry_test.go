package tracking

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestNormalize(t *testing.T) {
	cam := Camera{Width: 640, Height: 480, HFOV: 62.2, VFOV: 48.8}

	tests := []struct {
		name   string
		p      Point
		nx, ny float64
	}{
		{"pixel centre", Point{319.5, 239.5}, 0, 0},
		{"left edge", Point{-0.5, 239.5}, -1, 0},
		{"right edge", Point{639.5, 239.5}, 1, 0},
		{"top edge is +1", Point{319.5, -0.5}, 0, 1},
		{"bottom edge is -1", Point{319.5, 479.5}, 0, -1},
		{"origin", Point{0, 0}, 2.0 / 640 * -319.5, 2.0 / 480 * 239.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nx, ny := cam.Normalize(tt.p)
			if !approx(nx, tt.nx) || !approx(ny, tt.ny) {
				t.Errorf("Normalize(%v) = (%v, %v), want (%v, %v)", tt.p, nx, ny, tt.nx, tt.ny)
			}
		})
	}
}

func TestSolveCentredTarget(t *testing.T) {
	cam := Camera{Width: 640, Height: 480, HFOV: 62.2, VFOV: 48.8}
	out := cam.Solve(Point{319.5, 239.5})

	if !approx(out.NormalCoord[0], 0) || !approx(out.NormalCoord[1], 0) {
		t.Errorf("normal coord = %v, want [0 0]", out.NormalCoord)
	}
	if !approx(out.Angle, math.Pi/2) {
		t.Errorf("angle = %v, want pi/2", out.Angle)
	}
	if out.RawCenter != [2]float64{319.5, 239.5} {
		t.Errorf("raw center = %v", out.RawCenter)
	}
}

func TestSolveSingleTarget(t *testing.T) {
	// Bounding box origin at (100, 80) in a 640x480 frame, N=1.
	cam := Camera{Width: 640, Height: 480, HFOV: 62.2, VFOV: 48.8}
	out := cam.Solve(Point{100, 80})

	wantNx := (2.0 / 640) * (100 - 319.5)
	wantNy := (2.0 / 480) * (239.5 - 80)
	if !approx(out.NormalCoord[0], wantNx) || !approx(out.NormalCoord[1], wantNy) {
		t.Fatalf("normal coord = %v, want [%v %v]", out.NormalCoord, wantNx, wantNy)
	}

	vpw := 2 * math.Tan(62.2*math.Pi/180/2)
	x := vpw / 2 * wantNx
	if !approx(out.Angle, math.Atan2(1, x)) {
		t.Errorf("angle = %v, want %v", out.Angle, math.Atan2(1, x))
	}
	// Left of centre steers past pi/2.
	if out.Angle <= math.Pi/2 {
		t.Errorf("angle %v should exceed pi/2 for a target left of centre", out.Angle)
	}
}

func TestViewport(t *testing.T) {
	cam := Camera{Width: 1, Height: 1, HFOV: 90, VFOV: 90}
	vpw, vph := cam.Viewport()
	if !approx(vpw, 2) || !approx(vph, 2) {
		t.Errorf("Viewport() = (%v, %v), want (2, 2)", vpw, vph)
	}
}
