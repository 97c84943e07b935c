package dashboard

import (
	"time"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
)

// ChartType selects how a panel is drawn.
type ChartType string

const (
	Line       ChartType = "line"
	Bar        ChartType = "bar"
	Area       ChartType = "area"
	StackedBar ChartType = "stacked_bar"
	Pie        ChartType = "pie"
)

// ChartTypes lists the supported chart types.
var ChartTypes = []ChartType{Line, Bar, Area, StackedBar, Pie}

// Valid reports whether c is a supported chart type.
func (c ChartType) Valid() bool {
	switch c {
	case Line, Bar, Area, StackedBar, Pie:
		return true
	}
	return false
}

// Panel defaults applied by Compile when a field is absent.
const (
	DefaultAggregation = queryir.Sum
	DefaultBucket      = period.Day
	DefaultRange       = "last_30_days"
	DefaultChart       = Line
)

// Dashboard is a compiled dashboard definition.
type Dashboard struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Panels      []Panel `json:"panels"`
}

// Panel returns the panel with the given name.
func (d *Dashboard) Panel(name string) (Panel, bool) {
	for _, p := range d.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return Panel{}, false
}

// Panel is one chart on a dashboard.
type Panel struct {
	Name        string              `json:"name"`
	Title       string              `json:"title"`
	Dataset     string              `json:"dataset"`
	Measure     string              `json:"measure,omitempty"`
	Aggregation queryir.AggFunc     `json:"aggregation"`
	Bucket      period.Granularity  `json:"bucket"`
	Range       string              `json:"range"`
	GroupBy     string              `json:"group_by,omitempty"`
	Filter      map[string][]string `json:"filter,omitempty"`
	Chart       ChartType           `json:"chart"`
	Trend       bool                `json:"trend"`
	Forecast    int                 `json:"forecast,omitempty"`
}

// Query builds the aggregate query for the panel over rng.
// An all-time range adds no time predicate.
func (p Panel) Query(rng period.Range) queryir.Aggregate {
	var timeFilter queryir.Predicate
	if !rng.IsAll() {
		timeFilter = queryir.TimeRange{From: rng.From, To: rng.To}
	}
	return queryir.Aggregate{
		Dataset: p.Dataset,
		Measure: p.Measure,
		Func:    p.Aggregation,
		Bucket:  p.Bucket,
		GroupBy: p.GroupBy,
		Filter:  queryir.AndOf(queryir.FromFilter(p.Filter), timeFilter),
	}
}

// ResolveRange parses the panel's range expression relative to now.
// override, when non-empty, replaces the declared range.
func (p Panel) ResolveRange(override string, now time.Time) (period.Range, error) {
	expr := p.Range
	if override != "" {
		expr = override
	}
	return period.ParseRange(expr, now)
}
