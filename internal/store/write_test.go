package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/record"
)

func TestWriteRecords_InsertsAndCreatesDataset(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	recs := []record.Record{
		createTestRecord(t, "sales", day, 1, "eu", 10),
		createTestRecord(t, "sales", day.Add(time.Hour), 2, "us", 20),
	}

	n, err := s.WriteRecords(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	datasets, err := s.Datasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "sales", datasets[0].Name)
	assert.Equal(t, testNow, datasets[0].CreatedAt)
}

func TestWriteRecords_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	recs := []record.Record{
		createTestRecord(t, "sales", day, 1, "eu", 10),
		createTestRecord(t, "sales", day, 2, "us", 20),
	}

	n, err := s.WriteRecords(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same content, different seq: same ID, nothing inserted.
	recs[0].Seq, recs[1].Seq = 10, 11
	n, err = s.WriteRecords(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := s.ReadRecords(ctx, "sales", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Seq, "first write wins")
}

func TestWriteRecords_DuplicateWithinBatch(t *testing.T) {
	s := createTestStore(t)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := createTestRecord(t, "sales", day, 1, "eu", 10)

	n, err := s.WriteRecords(context.Background(), []record.Record{r, r})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteRecords_RejectsMissingID(t *testing.T) {
	s := createTestStore(t)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	good := createTestRecord(t, "sales", day, 1, "eu", 10)
	bad := record.Record{Dataset: "sales", Time: day, Measures: map[string]float64{"amount": 1}}

	_, err := s.WriteRecords(context.Background(), []record.Record{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no id")

	// Whole batch rolled back.
	got, err := s.ReadRecords(context.Background(), "sales", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteRecords_Empty(t *testing.T) {
	s := createTestStore(t)
	n, err := s.WriteRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteRecords_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.WriteRecords(ctx, []record.Record{createTestRecord(t, "sales", day, 1, "eu", 10)})
	assert.Error(t, err)
}
