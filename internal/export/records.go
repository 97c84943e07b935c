package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/roach88/tally/internal/record"
)

// TimeLayout is the layout of the time column in exported records.
const TimeLayout = time.RFC3339Nano

// WriteRecordsCSV writes raw records with columns id, time, the sorted union
// of dimension keys, then the sorted union of measure keys. Missing values
// are empty cells.
func WriteRecordsCSV(w io.Writer, records []record.Record) error {
	dims, measures, err := columns(records)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, 2+len(dims)+len(measures))
	header = append(header, "id", "time")
	header = append(header, dims...)
	header = append(header, measures...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, r := range records {
		row = row[:0]
		row = append(row, r.ID, r.Time.UTC().Format(TimeLayout))
		for _, k := range dims {
			row = append(row, guardCell(r.Dimensions[k]))
		}
		for _, k := range measures {
			v, ok := r.Measures[k]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func columns(records []record.Record) (dims, measures []string, err error) {
	dimSet := map[string]bool{}
	measureSet := map[string]bool{}
	for _, r := range records {
		for k := range r.Dimensions {
			dimSet[k] = true
		}
		for k := range r.Measures {
			measureSet[k] = true
		}
	}
	for k := range dimSet {
		if measureSet[k] {
			return nil, nil, fmt.Errorf("export: %q is a dimension in some records and a measure in others", k)
		}
		dims = append(dims, k)
	}
	for k := range measureSet {
		measures = append(measures, k)
	}
	sort.Strings(dims)
	sort.Strings(measures)
	return dims, measures, nil
}
