package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tally/internal/record"
)

// WriteRecords inserts records in a single transaction and returns how many
// were new. Uses ON CONFLICT(id) DO NOTHING for idempotency - a record whose
// content address already exists is silently skipped.
//
// Datasets referenced by the batch are created on first use. Every record
// must already carry its ID (see record.Stamp).
func (s *Store) WriteRecords(ctx context.Context, records []record.Record) (inserted int, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write records: begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	created := make(map[string]bool)
	now := toMillis(s.now())

	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("write records: record in %q has no id", r.Dataset)
		}

		if !created[r.Dataset] {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO datasets (name, created_at) VALUES (?, ?)
				ON CONFLICT(name) DO NOTHING
			`, r.Dataset, now); err != nil {
				return 0, fmt.Errorf("write records: dataset %q: %w", r.Dataset, err)
			}
			created[r.Dataset] = true
		}

		dims, err := marshalJSON(r.Dimensions)
		if err != nil {
			return 0, fmt.Errorf("write records: marshal dimensions: %w", err)
		}
		measures, err := marshalJSON(r.Measures)
		if err != nil {
			return 0, fmt.Errorf("write records: marshal measures: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO records (id, dataset, ts, seq, dimensions, measures)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, r.ID, r.Dataset, toMillis(r.Time), r.Seq, dims, measures)
		if err != nil {
			return 0, fmt.Errorf("write records: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write records: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write records: commit: %w", err)
	}
	return inserted, nil
}
