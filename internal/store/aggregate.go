package store

import (
	"context"
	"fmt"
)

// Row is one (bucket, group) cell of an aggregate query.
type Row struct {
	Bucket string
	Group  string
	Value  float64
	Count  int64
}

// Aggregate runs SQL produced by querysql.Compiler and scans its
// (bucket, grp, value, n) columns. Row order is the order SQLite returns,
// which the compiler pins with ORDER BY.
func (s *Store) Aggregate(ctx context.Context, query string, params []any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Bucket, &r.Group, &r.Value, &r.Count); err != nil {
			return nil, fmt.Errorf("aggregate: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate: iterate: %w", err)
	}
	return out, nil
}
