package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
)

var testNow = time.Date(2026, 3, 18, 16, 0, 0, 0, time.UTC)

func validPanel() Panel {
	return Panel{
		Name:        "p",
		Title:       "P",
		Dataset:     "orders",
		Measure:     "amount",
		Aggregation: queryir.Sum,
		Bucket:      period.Day,
		Range:       "last_30_days",
		Chart:       Line,
	}
}

func codes(errs []ValidationError) []string {
	out := []string{}
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	d := Dashboard{Name: "d", Title: "D", Panels: []Panel{validPanel()}}
	assert.Empty(t, Validate(d))
	assert.Empty(t, Validate(&d))
}

func TestValidate_Codes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Panel)
		want   []string
	}{
		{"bad aggregation", func(p *Panel) { p.Aggregation = "median" }, []string{ErrBadAggregation}},
		{"bad bucket", func(p *Panel) { p.Bucket = "fortnight" }, []string{ErrBadBucket}},
		{"bad chart", func(p *Panel) { p.Chart = "radar" }, []string{ErrBadChart}},
		{"bad range", func(p *Panel) { p.Range = "someday" }, []string{ErrBadRange}},
		{"forecast without trend", func(p *Panel) { p.Forecast = 2 }, []string{ErrForecastNoTrend}},
		{"negative forecast", func(p *Panel) { p.Trend = true; p.Forecast = -1 }, []string{ErrForecastNoTrend}},
		{"bad dataset", func(p *Panel) { p.Dataset = "Orders!" }, []string{ErrBadName}},
		{"missing measure", func(p *Panel) { p.Measure = "" }, []string{ErrBadName}},
		{"count needs no measure", func(p *Panel) { p.Measure = ""; p.Aggregation = queryir.Count }, []string{}},
		{"bad group_by", func(p *Panel) { p.GroupBy = "Region" }, []string{ErrBadName}},
		{"bad filter key", func(p *Panel) { p.Filter = map[string][]string{"a-b": {"x"}} }, []string{ErrBadName}},
		{"empty filter values", func(p *Panel) { p.Filter = map[string][]string{"region": {}} }, []string{ErrBadName}},
		{"trend with forecast ok", func(p *Panel) { p.Trend = true; p.Forecast = 3 }, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPanel()
			tt.mutate(&p)
			d := Dashboard{Name: "d", Title: "D", Panels: []Panel{p}}
			assert.Equal(t, tt.want, codes(Validate(d)))
		})
	}
}

func TestValidate_DashboardLevel(t *testing.T) {
	errs := Validate(Dashboard{Name: "d"})
	assert.Equal(t, []string{ErrMissingTitle, ErrNoPanels}, codes(errs))
	assert.Equal(t, "[D101] title: title is required and must be non-empty", errs[0].Error())
}

func TestValidate_UnsupportedType(t *testing.T) {
	assert.Equal(t, []string{ErrUnsupportedType}, codes(Validate("nope")))
	var nilDash *Dashboard
	assert.Equal(t, []string{ErrUnsupportedType}, codes(Validate(nilDash)))
}

func TestValidate_FieldPath(t *testing.T) {
	p := validPanel()
	p.Chart = "radar"
	errs := Validate(Dashboard{Name: "d", Title: "D", Panels: []Panel{p}})
	assert.Len(t, errs, 1)
	assert.Equal(t, "panel.p.chart", errs[0].Field)
}
