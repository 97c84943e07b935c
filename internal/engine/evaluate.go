package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/querysql"
	"github.com/roach88/tally/internal/regress"
	"github.com/roach88/tally/internal/store"
)

// TrendTolerance is the relative change below which a trend is called flat.
const TrendTolerance = 0.02

// Result is an evaluated panel: one gap-filled series per group.
type Result struct {
	Panel  dashboard.Panel `json:"panel"`
	Range  period.Range    `json:"range"`
	Groups []GroupSeries   `json:"groups"`
}

// GroupSeries is the series of one group value. Name is "" for panels
// without group_by.
type GroupSeries struct {
	Name      string         `json:"name"`
	Points    []period.Point `json:"points"`
	Trend     *regress.Line  `json:"trend,omitempty"`
	Fitted    []float64      `json:"fitted,omitempty"`
	Forecast  []period.Point `json:"forecast,omitempty"`
	Direction regress.Trend  `json:"direction,omitempty"`
}

// Buckets returns the bucket starts shared by every group.
func (r *Result) Buckets() []time.Time {
	if len(r.Groups) == 0 {
		return nil
	}
	out := make([]time.Time, len(r.Groups[0].Points))
	for i, p := range r.Groups[0].Points {
		out[i] = p.Bucket
	}
	return out
}

// Evaluate runs a panel over its declared range relative to the engine's
// wall clock.
func (e *Engine) Evaluate(ctx context.Context, p dashboard.Panel) (*Result, error) {
	rng, err := p.ResolveRange("", e.now())
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidQuery, Message: err.Error(), Dataset: p.Dataset, Panel: p.Name, Err: err}
	}
	return e.EvaluateRange(ctx, p, rng)
}

// Now returns the engine's wall-clock time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// EvaluateRange runs a panel over rng. Thread-safe: reads only.
//
// Steps: compile, aggregate, gap-fill every group over the same buckets,
// then fit a trend and forecast per group when the panel asks for one.
func (e *Engine) EvaluateRange(ctx context.Context, p dashboard.Panel, rng period.Range) (*Result, error) {
	ok, err := e.store.HasDataset(ctx, p.Dataset)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", p.Name, err)
	}
	if !ok {
		return nil, &RuntimeError{
			Code:    ErrCodeDatasetNotFound,
			Message: fmt.Sprintf("dataset %q has no data", p.Dataset),
			Dataset: p.Dataset,
			Panel:   p.Name,
		}
	}
	if !p.Bucket.Valid() {
		return nil, &RuntimeError{
			Code:    ErrCodeInvalidQuery,
			Message: fmt.Sprintf("panel bucket %q is not a granularity", p.Bucket),
			Dataset: p.Dataset,
			Panel:   p.Name,
		}
	}

	sql, params, err := e.compiler.Compile(p.Query(rng))
	if err != nil {
		var invalid *querysql.InvalidQueryError
		if errors.As(err, &invalid) {
			return nil, &RuntimeError{Code: ErrCodeInvalidQuery, Message: invalid.Error(), Dataset: p.Dataset, Panel: p.Name, Err: err}
		}
		return nil, fmt.Errorf("evaluate %s: %w", p.Name, err)
	}

	rows, err := e.store.Aggregate(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", p.Name, err)
	}

	groups, err := groupRows(rows, p.Bucket)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", p.Name, err)
	}

	// All-time ranges resolve to the span of the data so every group is
	// filled over the same buckets.
	span := rng
	if span.IsAll() {
		span = dataSpan(groups, p.Bucket)
	}

	res := &Result{Panel: p, Range: rng, Groups: make([]GroupSeries, 0, len(groups))}
	for _, name := range sortedGroupNames(groups) {
		gs := GroupSeries{Name: name}
		if !span.IsAll() {
			gs.Points = period.Fill(groups[name], span.From, span.To, p.Bucket)
		}
		if p.Trend {
			fitTrend(&gs, p)
		}
		res.Groups = append(res.Groups, gs)
	}
	return res, nil
}

func groupRows(rows []store.Row, g period.Granularity) (map[string][]period.Point, error) {
	groups := make(map[string][]period.Point)
	for _, r := range rows {
		t, err := period.ParseLabel(r.Bucket, g)
		if err != nil {
			return nil, err
		}
		groups[r.Group] = append(groups[r.Group], period.Point{Bucket: t, Value: r.Value, Count: r.Count})
	}
	return groups, nil
}

func sortedGroupNames(groups map[string][]period.Point) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dataSpan(groups map[string][]period.Point, g period.Granularity) period.Range {
	var first, last time.Time
	for _, pts := range groups {
		for _, p := range pts {
			if first.IsZero() || p.Bucket.Before(first) {
				first = p.Bucket
			}
			if p.Bucket.After(last) {
				last = p.Bucket
			}
		}
	}
	if first.IsZero() {
		return period.Range{}
	}
	return period.Span(first, last, g)
}

// fitTrend fits the group's values against bucket index. Series too short
// or flat in x get no trend.
func fitTrend(gs *GroupSeries, p dashboard.Panel) {
	values := make([]float64, len(gs.Points))
	for i, pt := range gs.Points {
		values[i] = pt.Value
	}
	line, err := regress.FitSeries(values)
	if err != nil {
		return
	}
	gs.Trend = &line
	gs.Fitted = line.Series(len(values))
	gs.Direction = regress.Direction(line, len(values), TrendTolerance)

	if p.Forecast > 0 {
		last := gs.Points[len(gs.Points)-1].Bucket
		for i, v := range line.Forecast(len(values), p.Forecast) {
			gs.Forecast = append(gs.Forecast, period.Point{
				Bucket: period.Add(last, p.Bucket, i+1),
				Value:  v,
			})
		}
	}
}
