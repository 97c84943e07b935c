package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/period"
)

// SeriesHeader is the header of WriteSeriesCSV output. TrendColumn is added
// when the panel fits a trend.
var SeriesHeader = []string{"bucket", "group", "value", "count"}

const TrendColumn = "trend"

// WriteSeriesCSV writes an evaluated panel as one row per group and bucket.
//
// Buckets use the machine-readable bucket key (period.Label). With a trend,
// each row carries the fitted value, and forecast buckets follow each group's
// data rows with empty value and count cells.
func WriteSeriesCSV(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)
	withTrend := res.Panel.Trend

	header := SeriesHeader
	if withTrend {
		header = append(append([]string{}, SeriesHeader...), TrendColumn)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	g := res.Panel.Bucket
	for _, gs := range res.Groups {
		group := guardCell(gs.Name)
		for i, p := range gs.Points {
			row := []string{period.Label(p.Bucket, g), group, formatFloat(p.Value), strconv.FormatInt(p.Count, 10)}
			if withTrend {
				row = append(row, fittedAt(gs, i))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		if !withTrend {
			continue
		}
		for _, p := range gs.Forecast {
			if err := cw.Write([]string{period.Label(p.Bucket, g), group, "", "", formatFloat(p.Value)}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func fittedAt(gs engine.GroupSeries, i int) string {
	if i >= len(gs.Fitted) {
		return ""
	}
	return formatFloat(gs.Fitted[i])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
