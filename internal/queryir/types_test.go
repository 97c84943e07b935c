package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAndOf(t *testing.T) {
	assert.Nil(t, AndOf())
	assert.Nil(t, AndOf(nil, nil))

	eq := Equals{Dimension: "region", Value: "emea"}
	assert.Equal(t, eq, AndOf(nil, eq))

	got := AndOf(eq, In{Dimension: "channel", Values: []string{"web"}})
	and, ok := got.(And)
	assert.True(t, ok)
	assert.Len(t, and.Predicates, 2)
}

func TestFromFilter(t *testing.T) {
	assert.Nil(t, FromFilter(nil))
	assert.Nil(t, FromFilter(map[string][]string{"region": {}}))

	got := FromFilter(map[string][]string{
		"region":  {"emea", "apac"},
		"channel": {"web"},
	})
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Dimension: "channel", Value: "web"},
		In{Dimension: "region", Values: []string{"emea", "apac"}},
	}}, got)
}

func TestAggFuncValid(t *testing.T) {
	for _, f := range AggFuncs {
		assert.True(t, f.Valid(), f)
	}
	assert.False(t, AggFunc("median").Valid())
}
