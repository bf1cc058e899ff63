package tracking

import (
	"sort"
)

// Select returns up to n objects with the largest contour area, largest
// first. Ties keep their detection order. objs is not modified.
func Select(objs []Object, n int) []Object {
	if n <= 0 || len(objs) == 0 {
		return nil
	}

	sorted := make([]Object, len(objs))
	copy(sorted, objs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Area < sorted[j].Area
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]Object, 0, n)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		out = append(out, sorted[i])
	}
	return out
}

// Aggregate sums the bounding-box origins of selected and divides by the
// configured count n, not by len(selected). With fewer than n targets in
// view the result is pulled toward the origin.
func Aggregate(selected []Object, n int) Point {
	if n <= 0 || len(selected) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, o := range selected {
		sx += float64(o.Box.Min.X)
		sy += float64(o.Box.Min.Y)
	}
	return Point{X: sx / float64(n), Y: sy / float64(n)}
}

// Track selects and aggregates in one step.
func Track(objs []Object, n int) (Point, []Object) {
	selected := Select(objs, n)
	return Aggregate(selected, n), selected
}
