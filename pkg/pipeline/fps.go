package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// fpsWindow is how many cycles FPSMeter averages over.
const fpsWindow = 60

// FPSMeter tracks cycle times over a sliding window.
type FPSMeter struct {
	ms   []float64 // ring of cycle times in milliseconds
	next int
	full bool
}

// NewFPSMeter returns an empty meter.
func NewFPSMeter() *FPSMeter {
	return &FPSMeter{ms: make([]float64, fpsWindow)}
}

// Observe records one cycle time and returns the instantaneous rate.
func (m *FPSMeter) Observe(d time.Duration) float64 {
	if d <= 0 {
		d = time.Microsecond
	}
	ms := float64(d) / float64(time.Millisecond)
	m.ms[m.next] = ms
	m.next = (m.next + 1) % len(m.ms)
	if m.next == 0 {
		m.full = true
	}
	return 1000 / ms
}

func (m *FPSMeter) samples() []float64 {
	if m.full {
		return m.ms
	}
	return m.ms[:m.next]
}

// Stats returns the mean rate and the standard deviation of cycle time in
// milliseconds over the window. Both are zero with no samples.
func (m *FPSMeter) Stats() (meanFPS, jitterMs float64) {
	xs := m.samples()
	if len(xs) == 0 {
		return 0, 0
	}
	mean := stat.Mean(xs, nil)
	if mean > 0 {
		meanFPS = 1000 / mean
	}
	if len(xs) > 1 {
		jitterMs = stat.StdDev(xs, nil)
	}
	if math.IsNaN(jitterMs) {
		jitterMs = 0
	}
	return meanFPS, jitterMs
}
