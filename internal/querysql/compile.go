// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
)

// Column aliases of every compiled aggregate, in select order.
const (
	ColBucket = "bucket"
	ColGroup  = "grp"
	ColValue  = "value"
	ColCount  = "n"
)

// AllBucket is the bucket key used when a query has no time bucket.
const AllBucket = "all"

// Compiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: every query ends with ORDER BY bucket, grp for deterministic results.
// CRITICAL: every value, including JSON paths, is a bound parameter.
type Compiler struct {
	// Table is the records table name. Defaults to "records".
	Table string
}

// NewCompiler creates a Compiler for the default records table.
func NewCompiler() *Compiler {
	return &Compiler{Table: "records"}
}

// Compile converts a query to SQL. Returns (sql, params, error).
// The query is validated first; validation failures are returned as an
// *InvalidQueryError.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if errs := queryir.Validate(q); len(errs) > 0 {
		return "", nil, &InvalidQueryError{Errors: errs}
	}

	switch query := q.(type) {
	case queryir.Aggregate:
		return c.compileAggregate(query)
	case *queryir.Aggregate:
		return c.compileAggregate(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *Compiler) compileAggregate(q queryir.Aggregate) (string, []any, error) {
	var params []any

	groupExpr := "''"
	if q.GroupBy != "" {
		groupExpr = "COALESCE(json_extract(dimensions, ?), '')"
		params = append(params, JSONPath(q.GroupBy))
	}

	valueExpr, valueParams := aggregateExpr(q.Func, q.Measure)
	params = append(params, valueParams...)

	where := []string{"dataset = ?"}
	params = append(params, q.Dataset)

	if q.Func != queryir.Count {
		where = append(where, "json_extract(measures, ?) IS NOT NULL")
		params = append(params, JSONPath(q.Measure))
	}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, filterSQL)
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf(
		"SELECT %s AS %s, %s AS %s, %s AS %s, COUNT(*) AS %s FROM %s WHERE %s GROUP BY %s, %s ORDER BY %s",
		bucketExpr(q.Bucket), ColBucket,
		groupExpr, ColGroup,
		valueExpr, ColValue,
		ColCount,
		c.table(),
		strings.Join(where, " AND "),
		ColBucket, ColGroup,
		stableOrderKey(),
	)
	return sql, params, nil
}

func (c *Compiler) table() string {
	if c.Table == "" {
		return "records"
	}
	return c.Table
}

// stableOrderKey returns the ORDER BY clause shared by all aggregates.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func stableOrderKey() string {
	return ColBucket + " COLLATE BINARY ASC, " + ColGroup + " COLLATE BINARY ASC"
}

// bucketExpr returns a SQL expression mapping ts (unix ms) to the same key
// period.Label produces for the bucket.
func bucketExpr(g period.Granularity) string {
	const secs = "ts / 1000.0, 'unixepoch'"
	switch g {
	case period.Hour:
		return "strftime('%Y-%m-%dT%H', " + secs + ")"
	case period.Day:
		return "strftime('%Y-%m-%d', " + secs + ")"
	case period.Week:
		// Advance to the coming Sunday (or stay), then back to Monday.
		return "date(" + secs + ", 'weekday 0', '-6 days')"
	case period.Month:
		return "strftime('%Y-%m', " + secs + ")"
	case period.Year:
		return "strftime('%Y', " + secs + ")"
	}
	return "'" + AllBucket + "'"
}

func aggregateExpr(f queryir.AggFunc, measure string) (string, []any) {
	if f == queryir.Count {
		return "COUNT(*)", nil
	}
	m := "json_extract(measures, ?)"
	path := []any{JSONPath(measure)}
	switch f {
	case queryir.Avg:
		return "COALESCE(AVG(" + m + "), 0)", path
	case queryir.Min:
		return "COALESCE(MIN(" + m + "), 0)", path
	case queryir.Max:
		return "COALESCE(MAX(" + m + "), 0)", path
	}
	return "COALESCE(SUM(" + m + "), 0)", path
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: values are never interpolated.
func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return "json_extract(dimensions, ?) = ?", []any{JSONPath(pred.Dimension), pred.Value}, nil
	case queryir.In:
		if len(pred.Values) == 0 {
			return "", nil, fmt.Errorf("IN predicate on %q has no values", pred.Dimension)
		}
		params := make([]any, 0, len(pred.Values)+1)
		params = append(params, JSONPath(pred.Dimension))
		for _, v := range pred.Values {
			params = append(params, v)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		return "json_extract(dimensions, ?) IN (" + placeholders + ")", params, nil
	case queryir.TimeRange:
		return "ts >= ? AND ts < ?", []any{pred.From.UTC().UnixMilli(), pred.To.UTC().UnixMilli()}, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		var parts []string
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := c.compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// JSONPath returns the SQLite JSON path selecting key at the top level.
func JSONPath(key string) string {
	return `$."` + key + `"`
}

// InvalidQueryError wraps the validation errors that stopped compilation.
type InvalidQueryError struct {
	Errors []queryir.ValidationError
}

func (e *InvalidQueryError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "invalid query: " + strings.Join(msgs, "; ")
}
