package tracking

// ChangeGate suppresses repeated outputs. The zero value is ready to use and
// starts with the no-target sentinel as its last value.
type ChangeGate struct {
	last Point
}

// Admit reports whether center should be emitted: it must be a real target
// and differ from the last admitted center. Admitted centers are remembered;
// rejected ones are not, so a target that disappears and returns to the same
// spot stays suppressed.
func (g *ChangeGate) Admit(center Point) bool {
	if center.IsZero() || center == g.last {
		return false
	}
	g.last = center
	return true
}

// Last returns the most recently admitted center.
func (g *ChangeGate) Last() Point {
	return g.last
}
