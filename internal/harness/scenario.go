package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/record"
)

// Scenario defines an end-to-end test: data to ingest and panels to check.
type Scenario struct {
	// Name uniquely identifies this scenario. Used for golden file names.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now freezes the wall clock that relative ranges resolve against.
	// Empty means testutil.Epoch.
	Now string `yaml:"now,omitempty"`

	// Dashboards is CUE source declaring the dashboards under test.
	Dashboards string `yaml:"dashboards"`

	// Batches are submitted in order, each as one engine batch.
	Batches []BatchStep `yaml:"batches"`

	// Panels are evaluated after every batch has been committed.
	Panels []PanelCheck `yaml:"panels"`
}

// BatchStep is one ingest batch, given either as records or as CSV.
type BatchStep struct {
	Dataset string       `yaml:"dataset"`
	Records []RecordSpec `yaml:"records,omitempty"`

	// CSV is parsed with export.ReadRecordsCSV. TimeColumn and Dimensions
	// are passed through as read options.
	CSV        string   `yaml:"csv,omitempty"`
	TimeColumn string   `yaml:"time_column,omitempty"`
	Dimensions []string `yaml:"dimensions,omitempty"`

	// Expect is checked against the batch result. Nil skips the check.
	Expect *BatchExpect `yaml:"expect,omitempty"`
}

// RecordSpec is a record as written in YAML.
type RecordSpec struct {
	Time       string             `yaml:"time"`
	Dimensions map[string]string  `yaml:"dimensions,omitempty"`
	Measures   map[string]float64 `yaml:"measures"`
}

// BatchExpect specifies the expected batch outcome.
type BatchExpect struct {
	Inserted   *int `yaml:"inserted,omitempty"`
	Duplicates *int `yaml:"duplicates,omitempty"`

	// Error is the engine error code (e.g. INVALID_RECORD) the batch must
	// fail with.
	Error string `yaml:"error,omitempty"`
}

// PanelCheck evaluates one panel and checks the result.
type PanelCheck struct {
	// Panel is "<dashboard>/<panel>".
	Panel string `yaml:"panel"`

	// Range overrides the panel's declared range.
	Range string `yaml:"range,omitempty"`

	Expect *PanelExpect `yaml:"expect,omitempty"`

	// Golden compares the series CSV against a golden file.
	Golden bool `yaml:"golden,omitempty"`
}

// PanelExpect specifies expected panel values. Every field is optional.
type PanelExpect struct {
	// Series maps group name ("" when ungrouped) to bucket values.
	Series map[string][]float64 `yaml:"series,omitempty"`

	// Forecast maps group name to projected values, rounded to 2 places.
	Forecast map[string][]float64 `yaml:"forecast,omitempty"`

	Total     *float64 `yaml:"total,omitempty"`
	Direction string   `yaml:"direction,omitempty"`

	// Error is the engine error code evaluation must fail with.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
//
// Uses strict parsing: unknown fields cause errors.
// Validates required fields after parsing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "panel:" vs "panels:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !record.ValidName(s.Name) {
		return fmt.Errorf("name %q must be a lowercase identifier", s.Name)
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := s.clock(); err != nil {
		return err
	}

	if strings.TrimSpace(s.Dashboards) == "" && len(s.Panels) > 0 {
		return fmt.Errorf("dashboards source is required when panels are checked")
	}

	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	for i, b := range s.Batches {
		if b.Dataset == "" {
			return fmt.Errorf("batches[%d]: dataset is required", i)
		}
		if len(b.Records) == 0 && b.CSV == "" {
			return fmt.Errorf("batches[%d]: records or csv is required", i)
		}
		if len(b.Records) > 0 && b.CSV != "" {
			return fmt.Errorf("batches[%d]: records and csv are mutually exclusive", i)
		}
		for j, r := range b.Records {
			if _, err := period.ParseTime(r.Time); err != nil {
				return fmt.Errorf("batches[%d].records[%d]: %w", i, j, err)
			}
		}
	}

	for i, p := range s.Panels {
		dash, panel, ok := strings.Cut(p.Panel, "/")
		if !ok || dash == "" || panel == "" {
			return fmt.Errorf("panels[%d]: panel must be <dashboard>/<panel>, got %q", i, p.Panel)
		}
		if p.Expect == nil && !p.Golden {
			return fmt.Errorf("panels[%d]: expect or golden is required", i)
		}
		if p.Golden && p.Expect != nil && p.Expect.Error != "" {
			return fmt.Errorf("panels[%d]: golden cannot be combined with an expected error", i)
		}
	}

	return nil
}

// clock returns the scenario's frozen wall-clock time.
func (s *Scenario) clock() (time.Time, error) {
	if s.Now == "" {
		return time.Time{}, nil
	}
	t, err := period.ParseTime(s.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("now: %w", err)
	}
	return t, nil
}

// records converts the YAML records of a batch.
func (b BatchStep) records() ([]record.Record, error) {
	out := make([]record.Record, len(b.Records))
	for i, r := range b.Records {
		ts, err := period.ParseTime(r.Time)
		if err != nil {
			return nil, err
		}
		out[i] = record.Record{
			Dataset:    b.Dataset,
			Time:       ts,
			Dimensions: r.Dimensions,
			Measures:   r.Measures,
		}
	}
	return out, nil
}
