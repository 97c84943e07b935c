package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/period"
)

func validAggregate() Aggregate {
	return Aggregate{
		Dataset: "orders",
		Measure: "amount",
		Func:    Sum,
		Bucket:  period.Month,
		GroupBy: "region",
		Filter: And{Predicates: []Predicate{
			Equals{Dimension: "channel", Value: "web"},
			TimeRange{
				From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	assert.Empty(t, Validate(validAggregate()))

	q := validAggregate()
	assert.Empty(t, Validate(&q))
}

func TestValidateCountWithoutMeasure(t *testing.T) {
	q := validAggregate()
	q.Func = Count
	q.Measure = ""
	assert.Empty(t, Validate(q))
}

func TestValidateNoBucket(t *testing.T) {
	q := validAggregate()
	q.Bucket = ""
	assert.Empty(t, Validate(q))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Aggregate)
		code   string
	}{
		{"dataset", func(q *Aggregate) { q.Dataset = "Orders!" }, ErrInvalidDataset},
		{"func", func(q *Aggregate) { q.Func = "median" }, ErrInvalidFunc},
		{"missing measure", func(q *Aggregate) { q.Measure = "" }, ErrMissingMeasure},
		{"measure injection", func(q *Aggregate) { q.Measure = "amount') --" }, ErrInvalidIdent},
		{"bucket", func(q *Aggregate) { q.Bucket = "decade" }, ErrInvalidBucket},
		{"group by", func(q *Aggregate) { q.GroupBy = "Region" }, ErrInvalidIdent},
		{"filter dimension", func(q *Aggregate) { q.Filter = Equals{Dimension: "a b", Value: "x"} }, ErrInvalidIdent},
		{"empty in", func(q *Aggregate) { q.Filter = In{Dimension: "region"} }, ErrEmptyIn},
		{"time range", func(q *Aggregate) {
			now := time.Now()
			q.Filter = TimeRange{From: now, To: now}
		}, ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validAggregate()
			tt.mutate(&q)
			errs := Validate(q)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	errs := Validate(Aggregate{Dataset: "", Func: "p99", Bucket: "decade"})
	assert.Equal(t, []string{ErrInvalidDataset, ErrInvalidFunc, ErrMissingMeasure, ErrInvalidBucket}, codes(errs))
}

func TestValidateNestedPath(t *testing.T) {
	q := validAggregate()
	q.Filter = And{Predicates: []Predicate{
		Equals{Dimension: "region", Value: "emea"},
		And{Predicates: []Predicate{In{Dimension: "channel"}}},
	}}
	errs := Validate(q)
	require.Len(t, errs, 1)
	assert.Equal(t, "filter[1][0]", errs[0].Field)
	assert.Contains(t, errs[0].Error(), "[Q106]")
}

func TestValidateUnsupported(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedQuery, errs[0].Code)

	var q *Aggregate
	errs = Validate(q)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedQuery, errs[0].Code)
}
