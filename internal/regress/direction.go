package regress

import "math"

// Trend classifies the direction of a fitted line.
type Trend string

const (
	Up   Trend = "up"
	Down Trend = "down"
	Flat Trend = "flat"
)

// Direction reports whether the line rises or falls by more than tolerance
// (a fraction of the mean fitted value) across the n fitted points.
// A series whose fitted mean is zero is compared against the absolute slope.
func Direction(l Line, n int, tolerance float64) Trend {
	if n < 2 {
		return Flat
	}
	first, last := l.At(0), l.At(float64(n-1))
	change := last - first
	base := math.Abs((first + last) / 2)
	if base == 0 {
		base = 1
	}
	switch {
	case change/base > tolerance:
		return Up
	case change/base < -tolerance:
		return Down
	}
	return Flat
}

// Arrow returns a one-character glyph for t.
func (t Trend) Arrow() string {
	switch t {
	case Up:
		return "↑"
	case Down:
		return "↓"
	}
	return "→"
}
