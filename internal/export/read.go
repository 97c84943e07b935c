package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/record"
)

// MaxRowErrors caps the row errors collected before reading stops.
const MaxRowErrors = 20

// ReadOptions controls how CSV columns map onto records.
type ReadOptions struct {
	// TimeColumn names the timestamp column, matched after snake-casing.
	// Default "time".
	TimeColumn string
	// Dimensions forces numeric-looking columns (zip codes, years) to be
	// read as dimensions.
	Dimensions []string
}

// WithKnownDimensions adds the dimension keys a dataset already stores, so
// re-importing an export keeps numeric-looking dimensions as dimensions.
func (o ReadOptions) WithKnownDimensions(known []string) ReadOptions {
	o.Dimensions = append(append([]string{}, o.Dimensions...), known...)
	return o
}

// RowError reports a malformed row. Line is the 1-based line in the input.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// skipColumns are written by WriteRecordsCSV or carried by other tools and
// are recomputed on ingest.
var skipColumns = map[string]bool{"id": true, "seq": true, "dataset": true}

type row struct {
	line  int
	cells []string
}

// ReadRecordsCSV parses a CSV import into records of dataset.
//
// Headers are snake_cased. Columns whose non-empty cells all parse as
// numbers become measures unless listed in opts.Dimensions; the rest become
// dimensions. Empty cells are omitted from the record.
//
// Any malformed row fails the whole import: the returned error joins one
// *RowError per bad row (at most MaxRowErrors) and no records are returned.
func ReadRecordsCSV(r io.Reader, dataset string, opts ReadOptions) ([]record.Record, error) {
	if opts.TimeColumn == "" {
		opts.TimeColumn = "time"
	}
	opts.TimeColumn = SnakeCase(opts.TimeColumn)

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &RowError{Line: 1, Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	keys, timeCol, err := parseHeader(header, opts.TimeColumn)
	if err != nil {
		return nil, err
	}

	var rows []row
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &RowError{Line: pe.StartLine, Err: pe.Err}
			}
			return nil, fmt.Errorf("read rows: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row{line: line, cells: cells})
	}

	measure := measureColumns(keys, timeCol, rows, opts.Dimensions)

	var (
		out  = make([]record.Record, 0, len(rows))
		errs []error
	)
	for _, rw := range rows {
		rec, err := buildRecord(dataset, keys, timeCol, measure, rw)
		if err != nil {
			errs = append(errs, err)
			if len(errs) == MaxRowErrors {
				break
			}
			continue
		}
		out = append(out, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func parseHeader(header []string, timeName string) (keys []string, timeCol int, err error) {
	timeCol = -1
	seen := make(map[string]bool, len(header))
	keys = make([]string, len(header))
	for i, h := range header {
		k := SnakeCase(h)
		switch {
		case k == timeName:
			timeCol = i
		case skipColumns[k]:
		case !record.ValidName(k):
			return nil, 0, &RowError{Line: 1, Column: h, Err: errors.New("header is not a valid key")}
		case seen[k]:
			return nil, 0, &RowError{Line: 1, Column: h, Err: fmt.Errorf("duplicate column %q", k)}
		}
		seen[k] = true
		keys[i] = k
	}
	if timeCol < 0 {
		return nil, 0, &RowError{Line: 1, Err: fmt.Errorf("no %q column", timeName)}
	}
	return keys, timeCol, nil
}

// measureColumns marks columns whose every non-empty cell is numeric.
// A column with no values at all stays a dimension.
func measureColumns(keys []string, timeCol int, rows []row, forcedDims []string) []bool {
	forced := make(map[string]bool, len(forcedDims))
	for _, d := range forcedDims {
		forced[SnakeCase(d)] = true
	}

	measure := make([]bool, len(keys))
	for i, k := range keys {
		if i == timeCol || skipColumns[k] || forced[k] {
			continue
		}
		numeric, present := true, false
		for _, rw := range rows {
			if i >= len(rw.cells) {
				continue
			}
			c := strings.TrimSpace(rw.cells[i])
			if c == "" {
				continue
			}
			present = true
			if !isFinite(c) {
				numeric = false
				break
			}
		}
		measure[i] = numeric && present
	}
	return measure
}

// isFinite reports whether c parses as a finite number. ParseFloat also
// accepts "NaN" and "Inf", which are text here.
func isFinite(c string) bool {
	v, err := strconv.ParseFloat(c, 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func buildRecord(dataset string, keys []string, timeCol int, measure []bool, rw row) (record.Record, error) {
	rec := record.Record{
		Dataset:  dataset,
		Measures: map[string]float64{},
	}

	ts, err := ParseTime(strings.TrimSpace(rw.cells[timeCol]))
	if err != nil {
		return record.Record{}, &RowError{Line: rw.line, Column: keys[timeCol], Err: err}
	}
	rec.Time = ts

	for i, k := range keys {
		if i == timeCol || skipColumns[k] {
			continue
		}
		c := strings.TrimSpace(rw.cells[i])
		if c == "" {
			continue
		}
		if measure[i] {
			v, err := strconv.ParseFloat(c, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return record.Record{}, &RowError{Line: rw.line, Column: k, Err: fmt.Errorf("%q is not a finite number", c)}
			}
			rec.Measures[k] = v
			continue
		}
		if rec.Dimensions == nil {
			rec.Dimensions = map[string]string{}
		}
		rec.Dimensions[k] = unguardCell(c)
	}

	if err := record.Validate(rec); err != nil {
		return record.Record{}, &RowError{Line: rw.line, Err: err}
	}
	return rec, nil
}

// ParseTime accepts the forms of period.ParseTime plus fractional unix
// seconds, which spreadsheet and log exports often carry.
func ParseTime(s string) (time.Time, error) {
	t, err := period.ParseTime(s)
	if err == nil {
		return t, nil
	}
	if secs, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64); ferr == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(math.Round(frac*1e3))*int64(time.Millisecond)).UTC(), nil
	}
	return time.Time{}, err
}
