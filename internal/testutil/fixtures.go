package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
)

// Epoch is the default instant fixtures and fake clocks are built around:
// Wednesday 2026-03-18 16:00 UTC.
var Epoch = time.Date(2026, 3, 18, 16, 0, 0, 0, time.UTC)

// OpenStore opens a store in a temp dir that is closed when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Rec builds an unstamped record. dims alternates key, value.
func Rec(dataset string, ts time.Time, measure string, value float64, dims ...string) record.Record {
	r := record.Record{
		Dataset:  dataset,
		Time:     ts,
		Measures: map[string]float64{measure: value},
	}
	if len(dims) > 0 {
		r.Dimensions = make(map[string]string, len(dims)/2)
		for i := 0; i+1 < len(dims); i += 2 {
			r.Dimensions[dims[i]] = dims[i+1]
		}
	}
	return r
}

// Daily returns one record per value on consecutive days starting at start.
func Daily(dataset string, start time.Time, measure string, values ...float64) []record.Record {
	out := make([]record.Record, len(values))
	for i, v := range values {
		out[i] = Rec(dataset, start.AddDate(0, 0, i), measure, v)
	}
	return out
}
