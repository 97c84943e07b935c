package chart

import (
	"math"
	"strings"

	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
)

// NoGroupLabel names the series of records missing the group_by dimension.
const NoGroupLabel = "(none)"

// Build produces a Config from an evaluated panel.
//
// Each group becomes one data series, ordered by group name, colored from
// Palette. Panels with a trend get a trend series per group over the data
// buckets and, with a forecast, a forecast series over the projected
// buckets. Pie panels become one series of per-group totals.
func Build(res *engine.Result) (*Config, error) {
	if res == nil || len(res.Groups) == 0 {
		return nil, ErrEmptyChart
	}
	p := res.Panel

	cfg := &Config{
		ChartType: string(p.Chart),
		Title:     p.Title,
		XAxis:     LabelForBucket(p.Bucket),
		YAxis:     LabelForAggregation(p.Aggregation, p.Measure),
		ShowGrid:  p.Chart != dashboard.Pie,
	}
	if cfg.ChartType == "" {
		cfg.ChartType = string(dashboard.Line)
	}

	if p.Chart == dashboard.Pie {
		buildPie(cfg, res)
	} else {
		buildSeries(cfg, res)
	}

	if len(cfg.Labels) == 0 {
		return nil, ErrEmptyChart
	}
	cfg.ShowLegend = len(cfg.Series) > 1
	return cfg, nil
}

func buildSeries(cfg *Config, res *engine.Result) {
	p := res.Panel
	for _, b := range res.Buckets() {
		cfg.Labels = append(cfg.Labels, period.Display(b, p.Bucket))
	}

	forecastLabels := map[string]bool{}
	for i, g := range res.Groups {
		color := ColorAt(i)
		cfg.Colors = append(cfg.Colors, color)
		name := seriesName(g.Name, p)

		data := make([]Point, len(g.Points))
		for j, pt := range g.Points {
			data[j] = Point{Label: cfg.Labels[j], Value: RoundTo2(pt.Value)}
		}
		cfg.Series = append(cfg.Series, Series{Name: name, Kind: KindData, Color: color, Data: data})

		if g.Trend == nil {
			continue
		}
		trend := make([]Point, len(g.Fitted))
		for j, v := range g.Fitted {
			trend[j] = Point{Label: cfg.Labels[j], Value: RoundTo2(v)}
		}
		cfg.Series = append(cfg.Series, Series{Name: name + " trend", Kind: KindTrend, Color: color, Data: trend})

		if len(g.Forecast) == 0 {
			continue
		}
		fc := make([]Point, len(g.Forecast))
		for j, pt := range g.Forecast {
			label := period.Display(pt.Bucket, p.Bucket)
			fc[j] = Point{Label: label, Value: RoundTo2(pt.Value)}
			if !forecastLabels[label] {
				forecastLabels[label] = true
				cfg.Labels = append(cfg.Labels, label)
			}
		}
		cfg.Series = append(cfg.Series, Series{Name: name + " forecast", Kind: KindForecast, Color: color, Data: fc})
	}
}

func buildPie(cfg *Config, res *engine.Result) {
	data := make([]Point, 0, len(res.Groups))
	for i, g := range res.Groups {
		var total float64
		for _, pt := range g.Points {
			total += pt.Value
		}
		label := seriesName(g.Name, res.Panel)
		cfg.Labels = append(cfg.Labels, label)
		cfg.Colors = append(cfg.Colors, ColorAt(i))
		data = append(data, Point{Label: label, Value: RoundTo2(total)})
	}
	cfg.Series = []Series{{Name: res.Panel.Title, Kind: KindData, Color: ColorAt(0), Data: data}}
}

func seriesName(group string, p dashboard.Panel) string {
	switch {
	case group != "":
		return group
	case p.GroupBy != "":
		return NoGroupLabel
	case p.Title != "":
		return p.Title
	}
	return "Value"
}

// LabelForBucket returns an axis label for a bucket granularity.
func LabelForBucket(g period.Granularity) string {
	return LabelForDimension(string(g))
}

// LabelForDimension returns a human-readable label for a snake_case key.
func LabelForDimension(key string) string {
	if key == "" {
		return ""
	}
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// LabelForAggregation returns a human-readable label for an aggregation.
func LabelForAggregation(f queryir.AggFunc, measure string) string {
	m := LabelForDimension(measure)
	switch f {
	case queryir.Count:
		return "Count"
	case queryir.Sum:
		return "Total " + m
	case queryir.Avg:
		return "Average " + m
	case queryir.Max:
		return "Maximum " + m
	case queryir.Min:
		return "Minimum " + m
	}
	return "Value"
}

// RoundTo2 rounds to two decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
