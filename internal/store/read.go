package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tally/internal/record"
)

// Dataset describes a stored dataset.
type Dataset struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DatasetStats summarises the contents of a dataset.
type DatasetStats struct {
	Dataset
	Records    int64     `json:"records"`
	First      time.Time `json:"first,omitzero"`
	Last       time.Time `json:"last,omitzero"`
	Dimensions []string  `json:"dimensions"`
	Measures   []string  `json:"measures"`
}

// ReadRecords returns the records of a dataset with from <= time < to.
// A zero from or to leaves that side unbounded; limit <= 0 means no limit.
// Results are ordered by ts ASC, seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadRecords(ctx context.Context, dataset string, from, to time.Time, limit int) ([]record.Record, error) {
	where := []string{"dataset = ?"}
	args := []any{dataset}
	if !from.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, toMillis(from))
	}
	if !to.IsZero() {
		where = append(where, "ts < ?")
		args = append(args, toMillis(to))
	}

	query := `
		SELECT id, dataset, ts, seq, dimensions, measures
		FROM records
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ts ASC, seq ASC, id COLLATE BINARY ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (record.Record, error) {
	var r record.Record
	var ts int64
	var dimsJSON, measuresJSON string

	if err := rows.Scan(&r.ID, &r.Dataset, &ts, &r.Seq, &dimsJSON, &measuresJSON); err != nil {
		return record.Record{}, fmt.Errorf("scan record: %w", err)
	}

	dims, err := unmarshalDimensions(dimsJSON)
	if err != nil {
		return record.Record{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	measures, err := unmarshalMeasures(measuresJSON)
	if err != nil {
		return record.Record{}, fmt.Errorf("record %s: %w", r.ID, err)
	}

	r.Time = fromMillis(ts)
	r.Dimensions = dims
	r.Measures = measures
	return r, nil
}

// Datasets lists all datasets ordered by name.
func (s *Store) Datasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, created_at FROM datasets
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	datasets := []Dataset{}
	for rows.Next() {
		var d Dataset
		var created int64
		if err := rows.Scan(&d.Name, &created); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		d.CreatedAt = fromMillis(created)
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return datasets, nil
}

// HasDataset reports whether a dataset exists.
func (s *Store) HasDataset(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup dataset %q: %w", name, err)
	}
	return n > 0, nil
}

// DatasetStats returns record count, time span and attribute keys of a
// dataset. Returns ErrNotFound if the dataset does not exist.
func (s *Store) DatasetStats(ctx context.Context, name string) (DatasetStats, error) {
	var stats DatasetStats
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, created_at FROM datasets WHERE name = ?
	`, name).Scan(&stats.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetStats{}, fmt.Errorf("dataset %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return DatasetStats{}, fmt.Errorf("dataset stats %q: %w", name, err)
	}
	stats.CreatedAt = fromMillis(created)

	var first, last sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(ts), MAX(ts) FROM records WHERE dataset = ?
	`, name).Scan(&stats.Records, &first, &last)
	if err != nil {
		return DatasetStats{}, fmt.Errorf("dataset stats %q: %w", name, err)
	}
	if first.Valid {
		stats.First = fromMillis(first.Int64)
		stats.Last = fromMillis(last.Int64)
	}

	if stats.Dimensions, err = s.jsonKeys(ctx, name, "dimensions"); err != nil {
		return DatasetStats{}, err
	}
	if stats.Measures, err = s.jsonKeys(ctx, name, "measures"); err != nil {
		return DatasetStats{}, err
	}
	return stats, nil
}

// DimensionKeys lists the dimension keys stored in a dataset. An unknown
// dataset has none.
func (s *Store) DimensionKeys(ctx context.Context, dataset string) ([]string, error) {
	return s.jsonKeys(ctx, dataset, "dimensions")
}

// jsonKeys lists the distinct top-level keys of a JSON column.
// column is one of the fixed column names, never caller input.
func (s *Store) jsonKeys(ctx context.Context, dataset, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT j.key
		FROM records r, json_each(r.`+column+`) j
		WHERE r.dataset = ?
		ORDER BY j.key COLLATE BINARY ASC
	`, dataset)
	if err != nil {
		return nil, fmt.Errorf("query %s keys: %w", column, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan %s key: %w", column, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s keys: %w", column, err)
	}
	return keys, nil
}

// MaxSeq returns the highest seq stored, or 0 for an empty store.
// The engine resumes its clock from this value.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM records`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}
