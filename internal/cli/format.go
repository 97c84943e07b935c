package cli

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/regress"
)

var printer = message.NewPrinter(language.English)

// formatNumber groups thousands and drops the fraction of whole numbers.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// formatChange renders the latest-vs-previous change with a trend arrow.
func formatChange(s engine.Summary) string {
	text := formatNumber(s.Change)
	if s.Change >= 0 {
		text = "+" + formatNumber(s.Change)
	}
	if s.ChangePct != nil {
		text += fmt.Sprintf(" (%+.1f%%)", *s.ChangePct)
	}
	return text
}

// trendColor picks the colour for a direction.
func trendColor(t regress.Trend) func(format string, a ...any) string {
	switch t {
	case regress.Up:
		return green.Sprintf
	case regress.Down:
		return red.Sprintf
	}
	return yellow.Sprintf
}
