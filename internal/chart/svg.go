package chart

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Plot margins in pixels. The top margin holds the title and legend row.
const (
	marginLeft   = 56
	marginRight  = 16
	marginTop    = 48
	marginBottom = 40

	yTicks = 4

	// MinWidth and MinHeight bound the drawable size.
	MinWidth  = 160
	MinHeight = 120
)

const (
	axisColor = "#374151"
	gridColor = "#E5E7EB"
)

// RenderSVG draws cfg as a standalone SVG document.
//
// Line and area charts place labels at evenly spaced points; bar, stacked
// bar and pie charts (drawn as bars of group totals) place them at band
// centers. Trend and forecast series are always drawn as dashed lines.
// Output is deterministic: coordinates are rounded to two decimals.
func RenderSVG(w io.Writer, cfg *Config, width, height int) error {
	if cfg == nil || len(cfg.Labels) == 0 || len(cfg.Series) == 0 {
		return ErrEmptyChart
	}
	if width < MinWidth || height < MinHeight {
		return fmt.Errorf("chart: size %dx%d below minimum %dx%d", width, height, MinWidth, MinHeight)
	}

	r := newRenderer(cfg, width, height)
	bw := bufio.NewWriter(w)
	r.w = bw
	r.render()
	if r.err != nil {
		return r.err
	}
	return bw.Flush()
}

type renderer struct {
	cfg    *Config
	w      *bufio.Writer
	err    error
	width  float64
	height float64
	plotW  float64
	plotH  float64
	lo, hi float64
	index  map[string]int
	banded bool
}

func newRenderer(cfg *Config, width, height int) *renderer {
	r := &renderer{
		cfg:    cfg,
		width:  float64(width),
		height: float64(height),
		plotW:  float64(width - marginLeft - marginRight),
		plotH:  float64(height - marginTop - marginBottom),
		index:  make(map[string]int, len(cfg.Labels)),
	}
	for i, l := range cfg.Labels {
		if _, dup := r.index[l]; !dup {
			r.index[l] = i
		}
	}
	switch cfg.ChartType {
	case "bar", "stacked_bar", "pie":
		r.banded = true
	}
	r.lo, r.hi = r.valueRange()
	return r
}

func (r *renderer) stacked() bool {
	return r.cfg.ChartType == "stacked_bar"
}

// valueRange returns the y-axis extent. Zero is always included.
func (r *renderer) valueRange() (lo, hi float64) {
	if r.stacked() {
		pos := make([]float64, len(r.cfg.Labels))
		neg := make([]float64, len(r.cfg.Labels))
		for _, s := range r.cfg.Series {
			if s.Kind != KindData {
				continue
			}
			for _, p := range s.Data {
				i, ok := r.index[p.Label]
				if !ok {
					continue
				}
				if p.Value >= 0 {
					pos[i] += p.Value
				} else {
					neg[i] += p.Value
				}
			}
		}
		for i := range pos {
			hi = math.Max(hi, pos[i])
			lo = math.Min(lo, neg[i])
		}
	}
	for _, s := range r.cfg.Series {
		if r.stacked() && s.Kind == KindData {
			continue
		}
		for _, p := range s.Data {
			hi = math.Max(hi, p.Value)
			lo = math.Min(lo, p.Value)
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func (r *renderer) y(v float64) float64 {
	return marginTop + r.plotH - (v-r.lo)/(r.hi-r.lo)*r.plotH
}

// x returns the horizontal position of the i-th label.
func (r *renderer) x(i int) float64 {
	n := float64(len(r.cfg.Labels))
	if r.banded {
		return marginLeft + (float64(i)+0.5)*r.plotW/n
	}
	if len(r.cfg.Labels) == 1 {
		return marginLeft + r.plotW/2
	}
	return marginLeft + float64(i)*r.plotW/(n-1)
}

func (r *renderer) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) render() {
	r.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="sans-serif" font-size="11">`+"\n",
		num(r.width), num(r.height), num(r.width), num(r.height))
	r.printf(`<rect width="%s" height="%s" fill="#FFFFFF"/>`+"\n", num(r.width), num(r.height))
	if r.cfg.Title != "" {
		r.printf(`<text x="%s" y="18" text-anchor="middle" font-size="14">%s</text>`+"\n", num(r.width/2), esc(r.cfg.Title))
	}

	r.axes()

	switch {
	case r.stacked():
		r.stackedBars()
	case r.banded:
		r.bars()
	case r.cfg.ChartType == "area":
		r.areas()
	}
	r.lines()

	if r.cfg.ShowLegend {
		r.legend()
	}
	r.printf("</svg>\n")
}

func (r *renderer) axes() {
	left, right := float64(marginLeft), float64(marginLeft)+r.plotW
	top, bottom := float64(marginTop), float64(marginTop)+r.plotH

	for k := 0; k <= yTicks; k++ {
		v := r.lo + float64(k)*(r.hi-r.lo)/yTicks
		y := r.y(v)
		if r.cfg.ShowGrid {
			r.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n", num(left), num(y), num(right), num(y), gridColor)
		}
		r.printf(`<text x="%s" y="%s" text-anchor="end">%s</text>`+"\n", num(left-6), num(y+4), esc(FormatValue(v)))
	}

	r.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n", num(left), num(top), num(left), num(bottom), axisColor)
	r.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n", num(left), num(r.y(0)), num(right), num(r.y(0)), axisColor)

	for i, l := range r.cfg.Labels {
		r.printf(`<text x="%s" y="%s" text-anchor="middle">%s</text>`+"\n", num(r.x(i)), num(bottom+16), esc(l))
	}
}

func (r *renderer) dataSeries() []Series {
	var out []Series
	for _, s := range r.cfg.Series {
		if s.Kind == KindData {
			out = append(out, s)
		}
	}
	return out
}

func (r *renderer) bars() {
	series := r.dataSeries()
	band := r.plotW / float64(len(r.cfg.Labels))
	barW := band * 0.8 / float64(len(series))
	for j, s := range series {
		for _, p := range s.Data {
			i, ok := r.index[p.Label]
			if !ok {
				continue
			}
			x := marginLeft + float64(i)*band + band*0.1 + float64(j)*barW
			fill := s.Color
			if r.cfg.ChartType == "pie" && i < len(r.cfg.Colors) {
				fill = r.cfg.Colors[i]
			}
			r.rect(x, p.Value, 0, barW, fill)
		}
	}
}

func (r *renderer) stackedBars() {
	band := r.plotW / float64(len(r.cfg.Labels))
	barW := band * 0.8
	pos := make([]float64, len(r.cfg.Labels))
	neg := make([]float64, len(r.cfg.Labels))
	for _, s := range r.dataSeries() {
		for _, p := range s.Data {
			i, ok := r.index[p.Label]
			if !ok {
				continue
			}
			x := marginLeft + float64(i)*band + band*0.1
			base := &pos[i]
			if p.Value < 0 {
				base = &neg[i]
			}
			r.rect(x, *base+p.Value, *base, barW, s.Color)
			*base += p.Value
		}
	}
}

// rect draws a bar spanning values from base to top.
func (r *renderer) rect(x, top, base, width float64, fill string) {
	y1, y2 := r.y(top), r.y(base)
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	r.printf(`<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`+"\n", num(x), num(y1), num(width), num(y2-y1), esc(fill))
}

func (r *renderer) areas() {
	for _, s := range r.dataSeries() {
		pts := r.points(s)
		if len(pts) == 0 {
			continue
		}
		base := num(r.y(0))
		var b strings.Builder
		b.WriteString(pts[0][0] + "," + base)
		for _, p := range pts {
			b.WriteString(" " + p[0] + "," + p[1])
		}
		b.WriteString(" " + pts[len(pts)-1][0] + "," + base)
		r.printf(`<polygon points="%s" fill="%s" fill-opacity="0.3"/>`+"\n", b.String(), esc(s.Color))
	}
}

// lines draws every series that renders as a polyline: all series on line
// and area charts, and derived series on banded charts.
func (r *renderer) lines() {
	for _, s := range r.cfg.Series {
		if r.banded && s.Kind == KindData {
			continue
		}
		pts := r.points(s)
		if len(pts) == 0 {
			continue
		}
		coords := make([]string, len(pts))
		for i, p := range pts {
			coords[i] = p[0] + "," + p[1]
		}
		dash := ""
		switch s.Kind {
		case KindTrend:
			dash = ` stroke-dasharray="6 4"`
		case KindForecast:
			dash = ` stroke-dasharray="2 4"`
		}
		r.printf(`<polyline points="%s" fill="none" stroke="%s" stroke-width="2"%s/>`+"\n", strings.Join(coords, " "), esc(s.Color), dash)
	}
}

func (r *renderer) points(s Series) [][2]string {
	out := make([][2]string, 0, len(s.Data))
	for _, p := range s.Data {
		i, ok := r.index[p.Label]
		if !ok {
			continue
		}
		out = append(out, [2]string{num(r.x(i)), num(r.y(p.Value))})
	}
	return out
}

func (r *renderer) legend() {
	x := float64(marginLeft)
	for _, s := range r.cfg.Series {
		r.printf(`<rect x="%s" y="26" width="10" height="10" fill="%s"/>`+"\n", num(x), esc(s.Color))
		r.printf(`<text x="%s" y="35">%s</text>`+"\n", num(x+14), esc(s.Name))
		x += 14 + 7*float64(len([]rune(s.Name))) + 12
	}
}

// FormatValue renders an axis value compactly: 1500 -> 1.5K, 2000000 -> 2M.
func FormatValue(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return num(v/1e9) + "B"
	case abs >= 1e6:
		return num(v/1e6) + "M"
	case abs >= 1e3:
		return num(v/1e3) + "K"
	}
	return num(v)
}

// num formats a coordinate rounded to two decimals without trailing zeros.
func num(v float64) string {
	v = RoundTo2(v)
	if v == 0 {
		v = 0 // normalize -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
