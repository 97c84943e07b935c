// Package period handles calendar arithmetic for dashboards: truncating
// times to buckets, naming buckets, parsing relative ranges and filling gaps
// in bucketed series.
//
// All computation happens in UTC. Weeks start on Monday (ISO 8601).
package period

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the width of a time bucket.
type Granularity string

const (
	Hour  Granularity = "hour"
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularities lists the supported bucket widths, finest first.
var Granularities = []Granularity{Hour, Day, Week, Month, Year}

// ParseGranularity accepts a granularity name, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("unknown granularity %q: must be one of %v", s, Granularities)
	}
	return g, nil
}

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	switch g {
	case Hour, Day, Week, Month, Year:
		return true
	}
	return false
}

// Truncate returns the start of the bucket containing t.
func Truncate(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch g {
	case Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, time.UTC)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Next returns the start of the bucket after the one containing t.
func Next(t time.Time, g Granularity) time.Time {
	return Add(Truncate(t, g), g, 1)
}

// Add moves a bucket start n buckets forward (or back when n < 0).
func Add(t time.Time, g Granularity, n int) time.Time {
	switch g {
	case Hour:
		return t.Add(time.Duration(n) * time.Hour)
	case Day:
		return t.AddDate(0, 0, n)
	case Week:
		return t.AddDate(0, 0, 7*n)
	case Month:
		return t.AddDate(0, n, 0)
	case Year:
		return t.AddDate(n, 0, 0)
	}
	return t
}

// Buckets returns the start of every bucket overlapping [from, to).
func Buckets(from, to time.Time, g Granularity) []time.Time {
	if !to.After(from) {
		return nil
	}
	var out []time.Time
	for b := Truncate(from, g); b.Before(to); b = Add(b, g, 1) {
		out = append(out, b)
	}
	return out
}

// Label layouts double as the bucket keys produced by the SQL compiler.
var labelLayouts = map[Granularity]string{
	Hour:  "2006-01-02T15",
	Day:   "2006-01-02",
	Week:  "2006-01-02",
	Month: "2006-01",
	Year:  "2006",
}

// Label returns the bucket key for the bucket containing t.
func Label(t time.Time, g Granularity) string {
	return Truncate(t, g).Format(labelLayouts[g])
}

// ParseLabel parses a bucket key produced by Label.
func ParseLabel(s string, g Granularity) (time.Time, error) {
	layout, ok := labelLayouts[g]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown granularity %q", g)
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s label %q: %w", g, s, err)
	}
	return t, nil
}

// Display returns a human-readable axis label for a bucket.
func Display(t time.Time, g Granularity) string {
	t = Truncate(t, g)
	switch g {
	case Hour:
		return t.Format("2006-01-02 15:00")
	case Week:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case Month:
		return t.Format("Jan 2006")
	}
	return Label(t, g)
}
