package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ListSortedAndGet(t *testing.T) {
	reg, err := NewRegistry([]Dashboard{
		{Name: "zeta", Title: "Z"},
		{Name: "alpha", Title: "A"},
	})
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)

	_, ok := reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg, err := NewRegistry([]Dashboard{{Name: "a", Title: "A"}})
	require.NoError(t, err)
	before := reg.Hash()

	err = reg.Replace([]Dashboard{{Name: "b"}, {Name: "b"}})
	require.Error(t, err)
	assert.Equal(t, before, reg.Hash(), "failed replace leaves registry unchanged")
	_, ok := reg.Get("a")
	assert.True(t, ok)
}

func TestHash_OrderIndependentAndContentSensitive(t *testing.T) {
	a := Dashboard{Name: "a", Title: "A", Panels: []Panel{validPanel()}}
	b := Dashboard{Name: "b", Title: "B", Panels: []Panel{validPanel()}}

	h1, err := Hash([]Dashboard{a, b})
	require.NoError(t, err)
	h2, err := Hash([]Dashboard{b, a})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	changed := validPanel()
	changed.Chart = Bar
	b.Panels = []Panel{changed}
	h3, err := Hash([]Dashboard{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestRegistry_ReplaceChangesHash(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)
	empty := reg.Hash()
	assert.Empty(t, reg.List())

	require.NoError(t, reg.Replace([]Dashboard{{Name: "a", Title: "A"}}))
	assert.NotEqual(t, empty, reg.Hash())
}
