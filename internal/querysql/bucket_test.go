package querysql

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/period"
)

// The SQL bucket expressions must agree with period.Label, otherwise
// gap filling would see every stored bucket as missing.
func TestBucketExprMatchesPeriodLabel(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	times := []time.Time{
		time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),   // Monday
		time.Date(2026, 3, 18, 16, 30, 0, 0, time.UTC), // Wednesday
		time.Date(2026, 3, 22, 23, 59, 59, 0, time.UTC), // Sunday
		time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC),    // Thursday, week starts in 2025
		time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		time.Date(1969, 12, 31, 23, 59, 59, 500_000_000, time.UTC), // negative ms
	}

	for _, g := range period.Granularities {
		for _, ts := range times {
			var got string
			err := db.QueryRow("SELECT "+bucketExpr(g)+" FROM (SELECT ? AS ts)", ts.UnixMilli()).Scan(&got)
			require.NoError(t, err)
			assert.Equal(t, period.Label(period.Truncate(ts, g), g), got, "%s %s", g, ts)
		}
	}
}
