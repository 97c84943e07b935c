package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/regress"
)

func series(name string, values ...float64) GroupSeries {
	g := GroupSeries{Name: name}
	for i, v := range values {
		g.Points = append(g.Points, period.Point{Bucket: dayStart(i + 1), Value: v, Count: 1})
	}
	return g
}

func TestSummarize_SingleSeries(t *testing.T) {
	s := Summarize(&Result{Groups: []GroupSeries{series("", 10, 20, 30, 40)}})

	assert.Equal(t, 100.0, s.Total)
	assert.Equal(t, 40.0, s.Latest)
	assert.Equal(t, 30.0, s.Previous)
	assert.Equal(t, 10.0, s.Change)
	require.NotNil(t, s.ChangePct)
	assert.InDelta(t, 33.333, *s.ChangePct, 0.001)
	assert.Equal(t, 4, s.Buckets)
	assert.Equal(t, dayStart(4), s.LatestAt)
	assert.Equal(t, regress.Up, s.Direction)
}

func TestSummarize_CombinesGroups(t *testing.T) {
	r := &Result{Groups: []GroupSeries{series("eu", 1, 2), series("us", 3, 4)}}

	combined := Combined(r)
	require.Len(t, combined, 2)
	assert.Equal(t, 4.0, combined[0].Value)
	assert.Equal(t, int64(2), combined[0].Count)
	assert.Equal(t, 6.0, combined[1].Value)

	s := Summarize(r)
	assert.Equal(t, 10.0, s.Total)
	assert.Equal(t, 6.0, s.Latest)
	assert.Equal(t, 2.0, s.Change)
}

func TestSummarize_ZeroPrevious(t *testing.T) {
	s := Summarize(&Result{Groups: []GroupSeries{series("", 0, 5)}})
	assert.Nil(t, s.ChangePct)
	assert.Equal(t, 5.0, s.Change)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&Result{})
	assert.Equal(t, Summary{Direction: regress.Flat}, s)
}

func TestSummarize_FlatAndDown(t *testing.T) {
	assert.Equal(t, regress.Flat, Summarize(&Result{Groups: []GroupSeries{series("", 5, 5, 5)}}).Direction)
	assert.Equal(t, regress.Down, Summarize(&Result{Groups: []GroupSeries{series("", 9, 6, 3)}}).Direction)
	assert.Equal(t, regress.Flat, Summarize(&Result{Groups: []GroupSeries{series("", 5)}}).Direction)
}
