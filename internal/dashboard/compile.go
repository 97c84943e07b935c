package dashboard

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
)

// Compile parses a CUE value into a Dashboard and applies panel defaults.
// Uses the CUE SDK's Go API directly.
//
// The CUE value should be the dashboard struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`dashboard: sales: { ... }`)
//	d, err := Compile(v.LookupPath(cue.ParsePath("dashboard.sales")))
//
// Compile reports malformed CUE (wrong kinds, non-concrete values). Semantic
// checks such as unknown aggregations are left to Validate.
func Compile(v cue.Value) (*Dashboard, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &Dashboard{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		d.Name = labels[len(labels)-1].String()
	}

	var err error
	if d.Title, err = optString(v, "title"); err != nil {
		return nil, err
	}
	if d.Description, err = optString(v, "description"); err != nil {
		return nil, err
	}

	panelsVal := v.LookupPath(cue.ParsePath("panel"))
	if !panelsVal.Exists() {
		return d, nil
	}
	iter, err := panelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, err := compilePanel(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		d.Panels = append(d.Panels, p)
	}

	return d, nil
}

func compilePanel(name string, v cue.Value) (Panel, error) {
	p := Panel{
		Name:        name,
		Aggregation: DefaultAggregation,
		Bucket:      DefaultBucket,
		Range:       DefaultRange,
		Chart:       DefaultChart,
	}

	strFields := []struct {
		path string
		dst  *string
	}{
		{"title", &p.Title},
		{"dataset", &p.Dataset},
		{"measure", &p.Measure},
		{"range", &p.Range},
		{"group_by", &p.GroupBy},
	}
	for _, f := range strFields {
		s, err := optString(v, f.path)
		if err != nil {
			return Panel{}, err
		}
		if s != "" {
			*f.dst = s
		}
	}

	agg, err := optString(v, "aggregation")
	if err != nil {
		return Panel{}, err
	}
	if agg != "" {
		p.Aggregation = queryir.AggFunc(agg)
	}

	bucket, err := optString(v, "bucket")
	if err != nil {
		return Panel{}, err
	}
	if bucket != "" {
		p.Bucket = period.Granularity(bucket)
	}

	chart, err := optString(v, "chart")
	if err != nil {
		return Panel{}, err
	}
	if chart != "" {
		p.Chart = ChartType(chart)
	}

	if trendVal := v.LookupPath(cue.ParsePath("trend")); trendVal.Exists() {
		if p.Trend, err = trendVal.Bool(); err != nil {
			return Panel{}, formatCUEError(err)
		}
	}

	if fcVal := v.LookupPath(cue.ParsePath("forecast")); fcVal.Exists() {
		n, err := fcVal.Int64()
		if err != nil {
			return Panel{}, formatCUEError(err)
		}
		p.Forecast = int(n)
	}

	if p.Filter, err = parseFilter(v); err != nil {
		return Panel{}, err
	}

	if p.Title == "" {
		p.Title = name
	}
	return p, nil
}

// parseFilter reads `filter: { dim: ["a", "b"] }`. A bare string is
// accepted as a one-element list.
func parseFilter(v cue.Value) (map[string][]string, error) {
	filterVal := v.LookupPath(cue.ParsePath("filter"))
	if !filterVal.Exists() {
		return nil, nil
	}

	iter, err := filterVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	filter := make(map[string][]string)
	for iter.Next() {
		dim := iter.Label()
		val := iter.Value()

		if s, err := val.String(); err == nil {
			filter[dim] = []string{s}
			continue
		}

		list, err := val.List()
		if err != nil {
			return nil, &CompileError{
				Field:   "filter." + dim,
				Message: "must be a string or list of strings",
				Pos:     val.Pos(),
			}
		}
		values := []string{}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			values = append(values, s)
		}
		filter[dim] = values
	}
	return filter, nil
}

// optString returns the string at path, or "" when the field is absent.
func optString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{
			Field:   path,
			Message: fmt.Sprintf("must be a string: %v", err),
			Pos:     f.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
