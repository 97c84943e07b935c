package dashboard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func loadErrorCodes(errs []error) []string {
	out := []string{}
	for _, err := range errs {
		if le, ok := err.(*LoadError); ok {
			out = append(out, le.Code)
		}
	}
	return out
}

func TestLoadDir_Valid(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("testdata", "valid"))
	require.NoError(t, err)

	result, errs := LoadDir(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Dashboards, 2)

	names := []string{result.Dashboards[0].Name, result.Dashboards[1].Name}
	assert.ElementsMatch(t, []string{"sales", "traffic"}, names)

	reg, err := NewRegistry(result.Dashboards)
	require.NoError(t, err)
	sales, ok := reg.Get("sales")
	require.True(t, ok)
	require.Len(t, sales.Panels, 2)
	assert.Equal(t, "revenue", sales.Panels[0].Name)
	assert.Equal(t, 3, sales.Panels[0].Forecast)
	assert.Equal(t, Bar, sales.Panels[1].Chart)
}

func TestLoadDir_NotFound(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"), LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeNotFound}, loadErrorCodes(errs))
}

func TestLoadDir_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "file.cue", "package dashboards")
	_, errs := LoadDir(filepath.Join(dir, "file.cue"), LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeNotFound}, loadErrorCodes(errs))
}

func TestLoadDir_NoFiles(t *testing.T) {
	_, errs := LoadDir(t.TempDir(), LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeNoFiles}, loadErrorCodes(errs))
}

func TestLoadDir_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", "package dashboards\n\ndashboard: x: {\n")
	_, errs := LoadDir(dir, LoadModeFailFast)
	assert.Equal(t, []string{ErrCodeLoadFailed}, loadErrorCodes(errs))
}

func TestLoadDir_ConflictIsBuildError(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "a.cue", "package dashboards\n\ndashboard: x: title: \"A\"\n")
	writeCUE(t, dir, "b.cue", "package dashboards\n\ndashboard: x: title: \"B\"\n")
	_, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	// CUE may surface the conflict when building or when the field is read.
	assert.Contains(t, []string{ErrCodeBuildFailed, ErrCodeCompile}, loadErrorCodes(errs)[0])
}

func TestLoadDir_ValidationModes(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "d.cue", `package dashboards

dashboard: bad: {
	panel: p: {
		dataset: "orders"
		measure: "amount"
		chart:   "radar"
	}
}

dashboard: good: {
	title: "Good"
	panel: p: { dataset: "orders", measure: "amount" }
}
`)

	result, errs := LoadDir(dir, LoadModeCollectAll)
	assert.Equal(t, []string{ErrMissingTitle, ErrBadChart}, loadErrorCodes(errs))
	require.Len(t, result.Dashboards, 1)
	assert.Equal(t, "good", result.Dashboards[0].Name)

	le := errs[1].(*LoadError)
	assert.Equal(t, "bad", le.Dashboard)
	assert.True(t, le.Pos.IsValid(), "validation errors point at the offending field")
	assert.Equal(t, 7, le.Pos.Line())

	_, errs = LoadDir(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadDir_NoDashboards(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "empty.cue", "package dashboards\n\nother: 1\n")
	_, errs := LoadDir(dir, LoadModeCollectAll)
	assert.Equal(t, []string{ErrCodeGeneric}, loadErrorCodes(errs))
}

func TestLoadString(t *testing.T) {
	result, errs := LoadString(`dashboard: d: { title: "D", panel: p: { dataset: "a", aggregation: "count" } }`, LoadModeCollectAll)
	require.Empty(t, errs)
	require.Len(t, result.Dashboards, 1)

	_, errs = LoadString(`dashboard: d: {`, LoadModeCollectAll)
	assert.Len(t, errs, 1)
}

func TestFindCUEFiles_Nested(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	writeCUE(t, dir, "root.cue", "package dashboards")
	writeCUE(t, sub, "inner.cue", "package dashboards")
	writeCUE(t, dir, "notes.txt", "ignored")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: "D101", Dashboard: "sales", Message: "title: required"}
	assert.Equal(t, "D101: dashboard sales: title: required", err.Error())
}
