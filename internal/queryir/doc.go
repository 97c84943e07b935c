// Package queryir provides the query intermediate representation used by
// dashboards and ad-hoc queries.
//
// A panel definition or a CLI flag set is compiled into an Aggregate, which a
// backend (internal/querysql) turns into SQL. Keeping the IR separate means
// panels never contain SQL text and every value reaching the database is a
// bound parameter.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so only this package
// can add node types and backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	case TimeRange:
//	}
//
// Identifiers (dataset, measure and dimension names) are restricted to lower
// snake_case by Validate. Backends rely on that when they splice identifiers
// into JSON paths.
package queryir
