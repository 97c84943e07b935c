// Package regress fits ordinary least-squares trend lines to bucketed series.
package regress

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTooFewPoints is returned when fewer than two points are supplied.
	ErrTooFewPoints = errors.New("regress: need at least two points")
	// ErrDegenerate is returned when every x is the same.
	ErrDegenerate = errors.New("regress: x has zero variance")
	// ErrLengthMismatch is returned when xs and ys differ in length.
	ErrLengthMismatch = errors.New("regress: xs and ys differ in length")
	// ErrNonFinite is returned when an input is NaN or infinite.
	ErrNonFinite = errors.New("regress: non-finite input")
)

// Line is a fitted y = Slope*x + Intercept.
type Line struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	N         int     `json:"n"`
}

// Fit computes the least-squares line through (xs[i], ys[i]).
//
// R2 is the coefficient of determination. When every y is identical the
// line explains the data exactly and R2 is 1.
func Fit(xs, ys []float64) (Line, error) {
	if len(xs) != len(ys) {
		return Line{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(xs), len(ys))
	}
	n := len(xs)
	if n < 2 {
		return Line{}, ErrTooFewPoints
	}

	var meanX, meanY float64
	for i := range xs {
		if !finite(xs[i]) || !finite(ys[i]) {
			return Line{}, fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	// Centered sums keep precision when x is large (e.g. unix seconds).
	var sxx, sxy, syy float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return Line{}, ErrDegenerate
	}

	slope := sxy / sxx
	line := Line{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		N:         n,
		R2:        1,
	}
	if syy != 0 {
		line.R2 = (sxy * sxy) / (sxx * syy)
	}
	return line, nil
}

// FitSeries fits values against their index 0..n-1.
func FitSeries(values []float64) (Line, error) {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	return Fit(xs, values)
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// Series returns fitted values at x = 0..n-1.
func (l Line) Series(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = l.At(float64(i))
	}
	return out
}

// Forecast projects k values beyond a series of length start,
// i.e. at x = start..start+k-1.
func (l Line) Forecast(start, k int) []float64 {
	if k <= 0 {
		return nil
	}
	out := make([]float64, k)
	for i := range out {
		out[i] = l.At(float64(start + i))
	}
	return out
}

// Residuals returns ys[i] - At(xs[i]).
func (l Line) Residuals(xs, ys []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = ys[i] - l.At(xs[i])
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
