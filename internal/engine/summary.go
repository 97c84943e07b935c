package engine

import (
	"math"
	"time"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/regress"
)

// Summary condenses a Result into headline numbers. Values of all groups
// are summed per bucket first.
type Summary struct {
	Total     float64       `json:"total"`
	Latest    float64       `json:"latest"`
	Previous  float64       `json:"previous"`
	Change    float64       `json:"change"`
	ChangePct *float64      `json:"change_pct,omitempty"` // nil when Previous is 0
	Buckets   int           `json:"buckets"`
	LatestAt  time.Time     `json:"latest_at,omitzero"`
	Direction regress.Trend `json:"direction"`
}

// Summarize computes the Summary of r.
func Summarize(r *Result) Summary {
	combined := Combined(r)
	s := Summary{Buckets: len(combined), Direction: regress.Flat}
	if len(combined) == 0 {
		return s
	}

	values := make([]float64, len(combined))
	for i, p := range combined {
		s.Total += p.Value
		values[i] = p.Value
	}

	last := combined[len(combined)-1]
	s.Latest = last.Value
	s.LatestAt = last.Bucket
	if len(combined) > 1 {
		s.Previous = combined[len(combined)-2].Value
	}
	s.Change = s.Latest - s.Previous
	if s.Previous != 0 {
		pct := s.Change / math.Abs(s.Previous) * 100
		s.ChangePct = &pct
	}

	if line, err := regress.FitSeries(values); err == nil {
		s.Direction = regress.Direction(line, len(values), TrendTolerance)
	}
	return s
}

// Combined sums every group's points bucket by bucket. Groups share their
// buckets after gap filling, so the result has the same length as any group.
func Combined(r *Result) []period.Point {
	if len(r.Groups) == 0 {
		return nil
	}
	if len(r.Groups) == 1 {
		return r.Groups[0].Points
	}

	out := make([]period.Point, len(r.Groups[0].Points))
	for i, p := range r.Groups[0].Points {
		out[i] = period.Point{Bucket: p.Bucket}
	}
	for _, g := range r.Groups {
		for i, p := range g.Points {
			if i < len(out) {
				out[i].Value += p.Value
				out[i].Count += p.Count
			}
		}
	}
	return out
}
