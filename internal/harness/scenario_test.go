package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One record"
batches:
  - dataset: web
    records:
      - { time: "2026-03-16T09:00:00Z", dimensions: { page: home }, measures: { views: 3 } }
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	require.Len(t, scenario.Batches, 1)
	assert.Equal(t, "web", scenario.Batches[0].Dataset)
	assert.Equal(t, "home", scenario.Batches[0].Records[0].Dimensions["page"])
	assert.Equal(t, 3.0, scenario.Batches[0].Records[0].Measures["views"])
	assert.Empty(t, scenario.Panels)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "panel: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "field panel not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: x\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\n",
			wantErr: "name is required",
		},
		{
			name:    "bad name",
			yaml:    "name: Bad-Name\ndescription: x\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\n",
			wantErr: "must be a lowercase identifier",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\n",
			wantErr: "description is required",
		},
		{
			name:    "bad now",
			yaml:    "name: x\ndescription: x\nnow: soon\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\n",
			wantErr: "now:",
		},
		{
			name:    "no batches",
			yaml:    "name: x\ndescription: x\n",
			wantErr: "batches list is required",
		},
		{
			name:    "batch without dataset",
			yaml:    "name: x\ndescription: x\nbatches: [{csv: \"time,v\\n2026-01-01,1\\n\"}]\n",
			wantErr: "batches[0]: dataset is required",
		},
		{
			name:    "empty batch",
			yaml:    "name: x\ndescription: x\nbatches: [{dataset: web}]\n",
			wantErr: "records or csv is required",
		},
		{
			name:    "records and csv",
			yaml:    "name: x\ndescription: x\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\", records: [{time: \"2026-01-01\", measures: {v: 1}}]}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "bad record time",
			yaml:    "name: x\ndescription: x\nbatches: [{dataset: web, records: [{time: \"later\", measures: {v: 1}}]}]\n",
			wantErr: "batches[0].records[0]",
		},
		{
			name:    "panels without dashboards",
			yaml:    "name: x\ndescription: x\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\npanels: [{panel: a/b, golden: true}]\n",
			wantErr: "dashboards source is required",
		},
		{
			name:    "bad panel reference",
			yaml:    "name: x\ndescription: x\ndashboards: \"x: 1\"\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\npanels: [{panel: ab, golden: true}]\n",
			wantErr: "panel must be <dashboard>/<panel>",
		},
		{
			name:    "panel without checks",
			yaml:    "name: x\ndescription: x\ndashboards: \"x: 1\"\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\npanels: [{panel: a/b}]\n",
			wantErr: "expect or golden is required",
		},
		{
			name:    "golden with error",
			yaml:    "name: x\ndescription: x\ndashboards: \"x: 1\"\nbatches: [{dataset: web, csv: \"time,v\\n2026-01-01,1\\n\"}]\npanels: [{panel: a/b, golden: true, expect: {error: DATASET_NOT_FOUND}}]\n",
			wantErr: "golden cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
