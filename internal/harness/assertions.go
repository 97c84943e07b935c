package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/tally/internal/chart"
	"github.com/roach88/tally/internal/engine"
)

// valueTolerance absorbs float noise from SQL aggregation and fitting.
const valueTolerance = 1e-9

func assertBatch(result *Result, i int, got engine.BatchResult, want BatchExpect) {
	if want.Inserted != nil && got.Inserted != *want.Inserted {
		result.AddError("batches[%d]: inserted = %d, want %d", i, got.Inserted, *want.Inserted)
	}
	if want.Duplicates != nil && got.Duplicates != *want.Duplicates {
		result.AddError("batches[%d]: duplicates = %d, want %d", i, got.Duplicates, *want.Duplicates)
	}
}

func assertPanel(result *Result, name string, res *engine.Result, want PanelExpect) {
	if want.Series != nil {
		assertGroups(result, name, "series", want.Series, groupValues(res))
	}
	if want.Forecast != nil {
		assertGroups(result, name, "forecast", want.Forecast, forecastValues(res))
	}

	if want.Total == nil && want.Direction == "" {
		return
	}
	summary := engine.Summarize(res)
	if want.Total != nil && !closeEnough(summary.Total, *want.Total) {
		result.AddError("%s: total = %v, want %v", name, summary.Total, *want.Total)
	}
	if want.Direction != "" && string(summary.Direction) != want.Direction {
		result.AddError("%s: direction = %s, want %s", name, summary.Direction, want.Direction)
	}
}

// assertGroups compares per-group value lists. Groups are reported in
// sorted order so failures read the same on every run.
func assertGroups(result *Result, panel, kind string, want, got map[string][]float64) {
	for _, g := range sortedKeys(want) {
		values, ok := got[g]
		if !ok {
			result.AddError("%s: %s: missing group %s", panel, kind, groupName(g))
			continue
		}
		if !sameValues(values, want[g]) {
			result.AddError("%s: %s %s = %s, want %s", panel, kind, groupName(g), formatValues(values), formatValues(want[g]))
		}
	}
	for _, g := range sortedKeys(got) {
		if _, ok := want[g]; !ok {
			result.AddError("%s: %s: unexpected group %s", panel, kind, groupName(g))
		}
	}
}

func groupValues(res *engine.Result) map[string][]float64 {
	out := make(map[string][]float64, len(res.Groups))
	for _, gs := range res.Groups {
		values := make([]float64, len(gs.Points))
		for i, p := range gs.Points {
			values[i] = p.Value
		}
		out[gs.Name] = values
	}
	return out
}

// forecastValues returns projections rounded the way charts show them.
func forecastValues(res *engine.Result) map[string][]float64 {
	out := make(map[string][]float64, len(res.Groups))
	for _, gs := range res.Groups {
		values := make([]float64, len(gs.Forecast))
		for i, p := range gs.Forecast {
			values[i] = chart.RoundTo2(p.Value)
		}
		out[gs.Name] = values
	}
	return out
}

func sameValues(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !closeEnough(got[i], want[i]) {
			return false
		}
	}
	return true
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= valueTolerance
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func groupName(g string) string {
	if g == "" {
		return "(ungrouped)"
	}
	return fmt.Sprintf("%q", g)
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
