package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Range is a half-open time interval [From, To).
// The zero Range means "all time"; callers resolve it against the data.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsAll reports whether r is unbounded.
func (r Range) IsAll() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside r.
func (r Range) Contains(t time.Time) bool {
	if r.IsAll() {
		return true
	}
	return !t.Before(r.From) && t.Before(r.To)
}

// String renders r in the explicit range syntax accepted by ParseRange.
func (r Range) String() string {
	if r.IsAll() {
		return "all"
	}
	return r.From.UTC().Format(time.RFC3339) + ".." + r.To.UTC().Format(time.RFC3339)
}

// Previous returns the range of equal length immediately before r.
func (r Range) Previous() Range {
	if r.IsAll() {
		return r
	}
	return Range{From: r.From.Add(-r.To.Sub(r.From)), To: r.From}
}

var relativeUnits = map[string]Granularity{
	"hour": Hour, "hours": Hour,
	"day": Day, "days": Day,
	"week": Week, "weeks": Week,
	"month": Month, "months": Month,
	"year": Year, "years": Year,
}

// ParseRange resolves a range expression relative to now.
//
// Accepted forms:
//
//	all
//	today | yesterday
//	this_week | this_month | this_year
//	ytd                              start of year until now
//	last_<n>_<hours|days|weeks|months|years>
//	<time>..<time>                   explicit, half-open
//
// Relative ranges end at the close of the current bucket, so "last_7_days"
// covers today and the six days before it.
func ParseRange(expr string, now time.Time) (Range, error) {
	raw := strings.TrimSpace(expr)
	expr = strings.ToLower(raw)
	now = now.UTC()

	switch expr {
	case "", "all":
		return Range{}, nil
	case "today":
		return bucketRange(now, Day, 1), nil
	case "yesterday":
		start := Add(Truncate(now, Day), Day, -1)
		return Range{From: start, To: Truncate(now, Day)}, nil
	case "this_week":
		return bucketRange(now, Week, 1), nil
	case "this_month":
		return bucketRange(now, Month, 1), nil
	case "this_year":
		return bucketRange(now, Year, 1), nil
	case "ytd":
		return Range{From: Truncate(now, Year), To: now}, nil
	}

	if from, to, ok := strings.Cut(raw, ".."); ok {
		start, err := ParseTime(from)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: start: %w", expr, err)
		}
		end, err := ParseTime(to)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: end: %w", expr, err)
		}
		if !end.After(start) {
			return Range{}, fmt.Errorf("range %q: end must be after start", expr)
		}
		return Range{From: start, To: end}, nil
	}

	if rest, ok := strings.CutPrefix(expr, "last_"); ok {
		count, unit, ok := strings.Cut(rest, "_")
		if !ok {
			return Range{}, fmt.Errorf("range %q: expected last_<n>_<unit>", expr)
		}
		n, err := strconv.Atoi(count)
		if err != nil || n <= 0 {
			return Range{}, fmt.Errorf("range %q: count must be a positive integer", expr)
		}
		g, ok := relativeUnits[unit]
		if !ok {
			return Range{}, fmt.Errorf("range %q: unknown unit %q", expr, unit)
		}
		return bucketRange(now, g, n), nil
	}

	return Range{}, fmt.Errorf("unrecognised range %q", expr)
}

// bucketRange covers the n buckets of width g ending with the one holding now.
func bucketRange(now time.Time, g Granularity, n int) Range {
	end := Next(now, g)
	return Range{From: Add(end, g, -n), To: end}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTime parses the timestamp forms accepted in queries and CSV files:
// RFC 3339, date-time without zone (taken as UTC), a bare date, a year-month,
// or integer unix seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) > 4 {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
