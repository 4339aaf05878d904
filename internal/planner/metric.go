package planner

import "math"

const (
	// maxFiniteScore bounds every finite metric value
	maxFiniteScore = math.MaxInt32
	// halfScore is substituted for an unmatched leg of a transfer
	// candidate's arrival score, producing a large but finite penalty
	halfScore = maxFiniteScore / 2
)

// Metric is a comparable ranking value with an explicit unbounded state,
// used where the dataset lacks the information to compute a real value.
// Unbounded compares greater than every finite value.
type Metric struct {
	Value     int
	Unbounded bool
}

// Finite wraps a concrete metric value
func Finite(v int) Metric {
	return Metric{Value: v}
}

// Unbounded is the sentinel for a metric that could not be computed
func Unbounded() Metric {
	return Metric{Unbounded: true}
}

// Compare returns -1, 0 or 1 ordering m against o.
// Two unbounded metrics compare equal, so ties fall through to the next
// element of a composite sort key.
func (m Metric) Compare(o Metric) int {
	switch {
	case m.Unbounded && o.Unbounded:
		return 0
	case m.Unbounded:
		return 1
	case o.Unbounded:
		return -1
	case m.Value < o.Value:
		return -1
	case m.Value > o.Value:
		return 1
	default:
		return 0
	}
}

// Add sums two metrics; any unbounded operand makes the result unbounded
func (m Metric) Add(o Metric) Metric {
	if m.Unbounded || o.Unbounded {
		return Unbounded()
	}
	return Finite(m.Value + o.Value)
}

// compareKeys orders two composite sort keys lexicographically
func compareKeys(a, b []Metric) int {
	for i := range a {
		if i >= len(b) {
			break
		}
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	return 0
}
