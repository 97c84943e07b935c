package queryir

import (
	"fmt"
	"sort"

	"github.com/roach88/tally/internal/record"
)

// Validation error codes (Q100-Q199).
const (
	ErrUnsupportedQuery = "Q100" // unknown query or predicate type
	ErrInvalidDataset   = "Q101" // dataset name is not an identifier
	ErrInvalidFunc      = "Q102" // unknown aggregation
	ErrMissingMeasure   = "Q103" // measure required for non-count aggregation
	ErrInvalidIdent     = "Q104" // measure or dimension is not an identifier
	ErrInvalidBucket    = "Q105" // unknown granularity
	ErrEmptyIn          = "Q106" // In predicate without values
	ErrInvalidTimeRange = "Q107" // TimeRange with From >= To
)

// ValidationError describes one problem with a query.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks q and returns every problem found (not fail-fast).
// Validate is a pure function.
func Validate(q Query) []ValidationError {
	v := &validator{}
	switch query := q.(type) {
	case Aggregate:
		v.validateAggregate(query)
	case *Aggregate:
		if query == nil {
			v.add(ErrUnsupportedQuery, "query", "nil query")
			break
		}
		v.validateAggregate(*query)
	default:
		v.add(ErrUnsupportedQuery, "query", fmt.Sprintf("unsupported query type %T", q))
	}
	return v.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(code, field, msg string) {
	v.errs = append(v.errs, ValidationError{Code: code, Field: field, Message: msg})
}

func (v *validator) validateAggregate(a Aggregate) {
	if !record.ValidName(a.Dataset) {
		v.add(ErrInvalidDataset, "dataset", fmt.Sprintf("%q is not a valid dataset name", a.Dataset))
	}
	if !a.Func.Valid() {
		v.add(ErrInvalidFunc, "func", fmt.Sprintf("%q is not one of %v", a.Func, AggFuncs))
	}
	if a.Func != Count {
		if a.Measure == "" {
			v.add(ErrMissingMeasure, "measure", fmt.Sprintf("measure is required for %s", a.Func))
		} else if !record.ValidName(a.Measure) {
			v.add(ErrInvalidIdent, "measure", fmt.Sprintf("%q is not a valid measure name", a.Measure))
		}
	}
	if a.Bucket != "" && !a.Bucket.Valid() {
		v.add(ErrInvalidBucket, "bucket", fmt.Sprintf("%q is not a valid granularity", a.Bucket))
	}
	if a.GroupBy != "" && !record.ValidName(a.GroupBy) {
		v.add(ErrInvalidIdent, "group_by", fmt.Sprintf("%q is not a valid dimension name", a.GroupBy))
	}
	if a.Filter != nil {
		v.validatePredicate(a.Filter, "filter")
	}
}

func (v *validator) validatePredicate(p Predicate, path string) {
	switch pred := p.(type) {
	case Equals:
		v.validateDimension(pred.Dimension, path)
	case In:
		v.validateDimension(pred.Dimension, path)
		if len(pred.Values) == 0 {
			v.add(ErrEmptyIn, path, fmt.Sprintf("no values for %q", pred.Dimension))
		}
	case And:
		for i, sub := range pred.Predicates {
			v.validatePredicate(sub, fmt.Sprintf("%s[%d]", path, i))
		}
	case TimeRange:
		if !pred.To.After(pred.From) {
			v.add(ErrInvalidTimeRange, path, "time range end must be after start")
		}
	default:
		v.add(ErrUnsupportedQuery, path, fmt.Sprintf("unsupported predicate type %T", p))
	}
}

func (v *validator) validateDimension(dim, path string) {
	if !record.ValidName(dim) {
		v.add(ErrInvalidIdent, path, fmt.Sprintf("%q is not a valid dimension name", dim))
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
