package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/querysql"
	"github.com/roach88/tally/internal/record"
)

func runAggregate(t *testing.T, s *Store, q queryir.Aggregate) []Row {
	t.Helper()
	sql, params, err := querysql.NewCompiler().Compile(q)
	require.NoError(t, err)
	rows, err := s.Aggregate(context.Background(), sql, params)
	require.NoError(t, err)
	return rows
}

func TestAggregate_SumByDay(t *testing.T) {
	s := createTestStore(t)
	seedSales(t, s)

	rows := runAggregate(t, s, queryir.Aggregate{
		Dataset: "sales", Measure: "amount", Func: queryir.Sum, Bucket: period.Day,
	})
	assert.Equal(t, []Row{
		{Bucket: "2026-03-01", Value: 10, Count: 1},
		{Bucket: "2026-03-02", Value: 20, Count: 1},
		{Bucket: "2026-03-03", Value: 30, Count: 1},
	}, rows)
}

func TestAggregate_GroupedAndFiltered(t *testing.T) {
	s := createTestStore(t)
	seedSales(t, s)

	rows := runAggregate(t, s, queryir.Aggregate{
		Dataset: "sales", Measure: "amount", Func: queryir.Avg, GroupBy: "region",
	})
	assert.Equal(t, []Row{
		{Bucket: "all", Group: "eu", Value: 20, Count: 2},
		{Bucket: "all", Group: "us", Value: 20, Count: 1},
	}, rows)

	rows = runAggregate(t, s, queryir.Aggregate{
		Dataset: "sales", Func: queryir.Count, Bucket: period.Month,
		Filter: queryir.Equals{Dimension: "region", Value: "eu"},
	})
	assert.Equal(t, []Row{{Bucket: "2026-03", Value: 2, Count: 2}}, rows)
}

func TestAggregate_TimeRangeAndMinMax(t *testing.T) {
	s := createTestStore(t)
	seedSales(t, s)

	rows := runAggregate(t, s, queryir.Aggregate{
		Dataset: "sales", Measure: "amount", Func: queryir.Max,
		Filter: queryir.TimeRange{
			From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		},
	})
	assert.Equal(t, []Row{{Bucket: "all", Value: 20, Count: 2}}, rows)

	rows = runAggregate(t, s, queryir.Aggregate{Dataset: "sales", Measure: "amount", Func: queryir.Min})
	assert.Equal(t, []Row{{Bucket: "all", Value: 10, Count: 3}}, rows)
}

func TestAggregate_MissingMeasureIgnored(t *testing.T) {
	s := createTestStore(t)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	other, err := record.Stamp(record.Record{
		Dataset: "sales", Time: day, Seq: 9,
		Measures: map[string]float64{"qty": 5},
	})
	require.NoError(t, err)
	_, err = s.WriteRecords(context.Background(), []record.Record{
		createTestRecord(t, "sales", day, 1, "eu", 10),
		other,
	})
	require.NoError(t, err)

	rows := runAggregate(t, s, queryir.Aggregate{Dataset: "sales", Measure: "amount", Func: queryir.Sum})
	assert.Equal(t, []Row{{Bucket: "all", Value: 10, Count: 1}}, rows)

	rows = runAggregate(t, s, queryir.Aggregate{Dataset: "sales", Func: queryir.Count, GroupBy: "region"})
	assert.Equal(t, []Row{
		{Bucket: "all", Group: "", Value: 1, Count: 1},
		{Bucket: "all", Group: "eu", Value: 1, Count: 1},
	}, rows)
}

func TestAggregate_WeekBuckets(t *testing.T) {
	s := createTestStore(t)
	_, err := s.WriteRecords(context.Background(), []record.Record{
		createTestRecord(t, "sales", time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC), 1, "eu", 1), // Sunday
		createTestRecord(t, "sales", time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), 2, "eu", 2),  // Monday
		createTestRecord(t, "sales", time.Date(2026, 3, 22, 12, 0, 0, 0, time.UTC), 3, "eu", 4), // Sunday
	})
	require.NoError(t, err)

	rows := runAggregate(t, s, queryir.Aggregate{
		Dataset: "sales", Measure: "amount", Func: queryir.Sum, Bucket: period.Week,
	})
	assert.Equal(t, []Row{
		{Bucket: "2026-03-09", Value: 1, Count: 1},
		{Bucket: "2026-03-16", Value: 6, Count: 2},
	}, rows)
}

func TestAggregate_BadSQL(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Aggregate(context.Background(), "SELECT nope FROM nowhere", nil)
	assert.Error(t, err)
}
