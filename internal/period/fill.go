package period

import "time"

// Point is one bucket of a time series.
type Point struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
	Count  int64     `json:"count"`
}

// Fill returns one point per bucket in [from, to), taking values from points
// and inserting zero points for buckets with no data. Points outside the
// range are dropped. If two points share a bucket the first one wins.
func Fill(points []Point, from, to time.Time, g Granularity) []Point {
	byBucket := make(map[int64]Point, len(points))
	for _, p := range points {
		key := Truncate(p.Bucket, g).Unix()
		if _, seen := byBucket[key]; !seen {
			byBucket[key] = p
		}
	}

	buckets := Buckets(from, to, g)
	out := make([]Point, 0, len(buckets))
	for _, b := range buckets {
		p, ok := byBucket[b.Unix()]
		if !ok {
			p = Point{}
		}
		p.Bucket = b
		out = append(out, p)
	}
	return out
}

// Span returns the range covering the first through last bucket of points,
// for resolving "all time" ranges against actual data.
func Span(first, last time.Time, g Granularity) Range {
	return Range{From: Truncate(first, g), To: Next(last, g)}
}
