package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/record"
)

// Validation error codes (D100-D199)
const (
	ErrUnsupportedType = "D100" // not a dashboard
	ErrMissingTitle    = "D101" // title is required
	ErrNoPanels        = "D102" // at least one panel required
	ErrBadAggregation  = "D103" // unknown aggregation
	ErrBadBucket       = "D104" // unknown bucket granularity
	ErrBadChart        = "D105" // unknown chart type
	ErrBadRange        = "D106" // range expression does not parse
	ErrForecastNoTrend = "D107" // forecast without trend, or out of bounds
	ErrBadName         = "D108" // dataset, measure or dimension is not an identifier
)

// MaxForecast bounds how many buckets a trend may be projected forward.
const MaxForecast = 365

// ValidationError represents a dashboard validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// rangeCheckTime anchors relative range expressions during validation.
// Only parseability matters, so any fixed instant works.
var rangeCheckTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Validate validates a compiled dashboard.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch d := v.(type) {
	case *Dashboard:
		if d == nil {
			break
		}
		return validateDashboard(d)
	case Dashboard:
		return validateDashboard(&d)
	}
	return []ValidationError{{
		Field:   "type",
		Message: fmt.Sprintf("unsupported type: %T", v),
		Code:    ErrUnsupportedType,
	}}
}

func validateDashboard(d *Dashboard) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if d.Title == "" {
		add(ErrMissingTitle, "title", "title is required and must be non-empty")
	}
	if len(d.Panels) == 0 {
		add(ErrNoPanels, "panel", "at least one panel is required")
	}

	for _, p := range d.Panels {
		prefix := "panel." + p.Name + "."

		if !record.ValidName(p.Dataset) {
			add(ErrBadName, prefix+"dataset", "%q is not a valid dataset name", p.Dataset)
		}
		if !p.Aggregation.Valid() {
			add(ErrBadAggregation, prefix+"aggregation", "%q is not one of %v", p.Aggregation, queryir.AggFuncs)
		}
		if p.Aggregation != queryir.Count && !record.ValidName(p.Measure) {
			add(ErrBadName, prefix+"measure", "%q is not a valid measure name", p.Measure)
		}
		if !p.Bucket.Valid() {
			add(ErrBadBucket, prefix+"bucket", "%q is not one of %v", p.Bucket, period.Granularities)
		}
		if !p.Chart.Valid() {
			add(ErrBadChart, prefix+"chart", "%q is not one of %v", p.Chart, ChartTypes)
		}
		if _, err := period.ParseRange(p.Range, rangeCheckTime); err != nil {
			add(ErrBadRange, prefix+"range", "%v", err)
		}
		if p.Forecast < 0 || p.Forecast > MaxForecast {
			add(ErrForecastNoTrend, prefix+"forecast", "must be between 0 and %d", MaxForecast)
		} else if p.Forecast > 0 && !p.Trend {
			add(ErrForecastNoTrend, prefix+"forecast", "forecast requires trend: true")
		}
		if p.GroupBy != "" && !record.ValidName(p.GroupBy) {
			add(ErrBadName, prefix+"group_by", "%q is not a valid dimension name", p.GroupBy)
		}

		dims := make([]string, 0, len(p.Filter))
		for dim := range p.Filter {
			dims = append(dims, dim)
		}
		sort.Strings(dims)
		for _, dim := range dims {
			if !record.ValidName(dim) {
				add(ErrBadName, prefix+"filter", "%q is not a valid dimension name", dim)
			}
			if len(p.Filter[dim]) == 0 {
				add(ErrBadName, prefix+"filter."+dim, "filter needs at least one value")
			}
		}
	}

	return errs
}
