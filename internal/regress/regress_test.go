package regress

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitExactLine(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{1, 3, 5, 7, 9}

	line, err := Fit(xs, ys)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, line.Slope, 1e-12)
	assert.InDelta(t, 1.0, line.Intercept, 1e-12)
	assert.InDelta(t, 1.0, line.R2, 1e-12)
	assert.Equal(t, 5, line.N)
}

func TestFitNoisy(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 5, 4, 5}

	line, err := Fit(xs, ys)
	require.NoError(t, err)

	// Reference values: slope 0.6, intercept 2.2, r² 0.6
	assert.InDelta(t, 0.6, line.Slope, 1e-9)
	assert.InDelta(t, 2.2, line.Intercept, 1e-9)
	assert.InDelta(t, 0.6, line.R2, 1e-9)
}

func TestFitLargeX(t *testing.T) {
	// Unix-second x values must not lose precision.
	base := 1.7e9
	xs := []float64{base, base + 86400, base + 2*86400}
	ys := []float64{10, 20, 30}

	line, err := Fit(xs, ys)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/86400, line.Slope, 1e-12)
	assert.InDelta(t, 1.0, line.R2, 1e-9)
	assert.InDelta(t, 40, line.At(base+3*86400), 1e-4)
}

func TestFitConstantY(t *testing.T) {
	line, err := Fit([]float64{0, 1, 2}, []float64{4, 4, 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, line.Slope)
	assert.Equal(t, 4.0, line.Intercept)
	assert.Equal(t, 1.0, line.R2)
}

func TestFitErrors(t *testing.T) {
	_, err := Fit([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = Fit(nil, nil)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = Fit([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Fit([]float64{3, 3, 3}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = Fit([]float64{1, 2}, []float64{1, math.NaN()})
	assert.True(t, errors.Is(err, ErrNonFinite))
}

func TestFitSeriesAndForecast(t *testing.T) {
	line, err := FitSeries([]float64{10, 12, 14, 16})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{10, 12, 14, 16}, line.Series(4), 1e-9)
	assert.InDeltaSlice(t, []float64{18, 20}, line.Forecast(4, 2), 1e-9)
	assert.Nil(t, line.Forecast(4, 0))
}

func TestResiduals(t *testing.T) {
	line := Line{Slope: 1, Intercept: 0}
	assert.Equal(t, []float64{0, 1, -1}, line.Residuals([]float64{1, 2, 3}, []float64{1, 3, 2}))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, Up, Direction(Line{Slope: 1, Intercept: 10}, 10, 0.05))
	assert.Equal(t, Down, Direction(Line{Slope: -1, Intercept: 10}, 10, 0.05))
	assert.Equal(t, Flat, Direction(Line{Slope: 0.001, Intercept: 10}, 10, 0.05))
	assert.Equal(t, Flat, Direction(Line{Slope: 5}, 1, 0.05))
	assert.Equal(t, Up, Direction(Line{Slope: 0.5, Intercept: -2.25}, 10, 0.05))

	assert.Equal(t, "↑", Up.Arrow())
	assert.Equal(t, "↓", Down.Arrow())
	assert.Equal(t, "→", Flat.Arrow())
}
