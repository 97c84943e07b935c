package queryir

import (
	"time"

	"github.com/roach88/tally/internal/period"
)

// Query represents an abstract query. Sealed: only this package implements it.
type Query interface {
	queryNode()
}

// Predicate represents a row filter. Sealed: only this package implements it.
type Predicate interface {
	predicateNode()
}

// AggFunc names the aggregation applied to a measure within a bucket.
type AggFunc string

const (
	Sum   AggFunc = "sum"
	Count AggFunc = "count"
	Avg   AggFunc = "avg"
	Min   AggFunc = "min"
	Max   AggFunc = "max"
)

// AggFuncs lists the supported aggregations.
var AggFuncs = []AggFunc{Sum, Count, Avg, Min, Max}

// Valid reports whether f is a supported aggregation.
func (f AggFunc) Valid() bool {
	switch f {
	case Sum, Count, Avg, Min, Max:
		return true
	}
	return false
}

// Aggregate groups the rows of one dataset by time bucket and, optionally,
// one dimension, then aggregates a measure within each group.
//
// Semantics:
//
//	SELECT bucket(ts), dim, f(measure), count(*)
//	FROM records WHERE dataset = ? AND <filter>
//	GROUP BY bucket, dim ORDER BY bucket, dim
//
// An empty Bucket collapses the whole range into one bucket keyed "all".
// Rows missing the measure are ignored by every function except Count.
// Rows missing the GroupBy dimension fall into the group "".
type Aggregate struct {
	Dataset string
	Measure string // ignored for Count
	Func    AggFunc
	Bucket  period.Granularity
	GroupBy string
	Filter  Predicate
}

func (Aggregate) queryNode() {}

// Equals matches rows whose dimension equals Value.
type Equals struct {
	Dimension string
	Value     string
}

func (Equals) predicateNode() {}

// In matches rows whose dimension is any of Values.
type In struct {
	Dimension string
	Values    []string
}

func (In) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// TimeRange matches rows with From <= time < To.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (TimeRange) predicateNode() {}

// AndOf builds a conjunction, dropping nil predicates and flattening a
// single remaining predicate.
func AndOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// FromFilter builds a predicate from dimension → allowed values.
// Values within a dimension are OR-combined and dimensions AND-combined.
// Dimensions are visited in sorted order so compiled SQL is stable.
func FromFilter(filter map[string][]string) Predicate {
	if len(filter) == 0 {
		return nil
	}
	var preds []Predicate
	for _, dim := range sortedKeys(filter) {
		vals := filter[dim]
		switch len(vals) {
		case 0:
			continue
		case 1:
			preds = append(preds, Equals{Dimension: dim, Value: vals[0]})
		default:
			preds = append(preds, In{Dimension: dim, Values: vals})
		}
	}
	return AndOf(preds...)
}
