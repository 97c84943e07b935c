package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tally/internal/export"
)

// RunWithGolden executes a scenario, fails the test on any expectation
// error, and compares every panel marked golden against
// testdata/golden/{scenario}_{dashboard}_{panel}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	for _, check := range scenario.Panels {
		if !check.Golden {
			continue
		}
		if err := AssertGolden(t, GoldenName(scenario.Name, check.Panel), result, check.Panel); err != nil {
			return result, err
		}
	}
	return result, nil
}

// AssertGolden compares the series CSV of an evaluated panel against a
// golden file. Useful when a result is already in hand.
func AssertGolden(t *testing.T, name string, result *Result, panel string) error {
	t.Helper()

	res, ok := result.Panels[panel]
	if !ok {
		return fmt.Errorf("panel %s was not evaluated", panel)
	}

	var buf bytes.Buffer
	if err := export.WriteSeriesCSV(&buf, res); err != nil {
		return fmt.Errorf("panel %s: %w", panel, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
	return nil
}

// GoldenName is the golden file base name for a scenario panel.
func GoldenName(scenario, panel string) string {
	return scenario + "_" + strings.ReplaceAll(panel, "/", "_")
}
