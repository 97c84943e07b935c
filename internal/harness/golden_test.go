package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenName(t *testing.T) {
	assert.Equal(t, "traffic_traffic_views", GoldenName("traffic", "traffic/views"))
}

func TestAssertGolden_PanelNotEvaluated(t *testing.T) {
	err := AssertGolden(t, "missing", NewResult(), "web/views")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not evaluated")
}
