package chart

import "errors"

// ErrEmptyChart is returned when there is nothing to draw.
var ErrEmptyChart = errors.New("chart: no data to draw")

// Kind distinguishes observed data from derived series.
type Kind string

const (
	KindData     Kind = "data"
	KindTrend    Kind = "trend"
	KindForecast Kind = "forecast"
)

// Config defines how to render a chart.
type Config struct {
	ChartType  string   `json:"chartType"`
	Title      string   `json:"title"`
	XAxis      string   `json:"xAxis,omitempty"`
	YAxis      string   `json:"yAxis,omitempty"`
	Labels     []string `json:"labels"`
	Series     []Series `json:"series"`
	Colors     []string `json:"colors,omitempty"`
	ShowLegend bool     `json:"showLegend"`
	ShowGrid   bool     `json:"showGrid"`
}

// Series represents a data series in a chart. Points reference Config.Labels
// by label; a series may cover only some labels (forecasts cover the tail).
type Series struct {
	Name  string  `json:"name"`
	Kind  Kind    `json:"kind"`
	Color string  `json:"color,omitempty"`
	Data  []Point `json:"data"`
}

// Point represents a single data point.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Palette is the color cycle assigned to groups in order.
var Palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// ColorAt returns the palette color for the i-th group.
func ColorAt(i int) string {
	return Palette[i%len(Palette)]
}
