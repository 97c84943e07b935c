package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/record"
)

var testNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	s.SetClock(func() time.Time { return testNow })
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord builds a stamped record.
func createTestRecord(t *testing.T, dataset string, ts time.Time, seq int64, region string, amount float64) record.Record {
	t.Helper()
	r, err := record.Stamp(record.Record{
		Dataset:    dataset,
		Time:       ts,
		Seq:        seq,
		Dimensions: map[string]string{"region": region},
		Measures:   map[string]float64{"amount": amount},
	})
	require.NoError(t, err)
	return r
}
