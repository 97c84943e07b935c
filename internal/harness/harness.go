package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/export"
	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each run gets an isolated in-memory store and its own engine writer,
// so scenarios do not interfere with each other. The returned error covers
// setup failures only (store, dashboards, malformed batches); expectation
// mismatches are reported through Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	now, err := scenario.clock()
	if err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = testutil.Epoch
	}
	clock := testutil.NewFakeClock(now)
	st.SetClock(clock.Now)

	registry, err := loadDashboards(scenario.Dashboards)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, st,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(testutil.NewSequentialIDs("batch")),
		engine.WithNow(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()

	result := NewResult()
	submitErr := submitBatches(ctx, eng, scenario, result)

	eng.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("engine writer: %w", err)
	}
	if submitErr != nil {
		return nil, submitErr
	}

	for _, check := range scenario.Panels {
		if err := evaluatePanel(ctx, eng, registry, check, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func loadDashboards(src string) (*dashboard.Registry, error) {
	if strings.TrimSpace(src) == "" {
		return dashboard.NewRegistry(nil)
	}
	loaded, errs := dashboard.LoadString(src, dashboard.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load dashboards: %w", errors.Join(errs...))
	}
	return dashboard.NewRegistry(loaded.Dashboards)
}

// submitBatches hands every batch to the engine in order. Engine errors are
// matched against the batch expectation; everything else aborts the run.
func submitBatches(ctx context.Context, eng *engine.Engine, scenario *Scenario, result *Result) error {
	for i, step := range scenario.Batches {
		records, err := step.load()
		if err != nil {
			return fmt.Errorf("batches[%d]: %w", i, err)
		}

		res, err := eng.Submit(ctx, engine.Batch{
			Dataset: step.Dataset,
			Records: records,
			Source:  "scenario:" + scenario.Name,
		})

		var want BatchExpect
		if step.Expect != nil {
			want = *step.Expect
		}

		if err != nil {
			code := engine.CodeOf(err)
			if code == "" {
				return fmt.Errorf("batches[%d]: %w", i, err)
			}
			if want.Error == "" {
				result.AddError("batches[%d]: unexpected error %s: %v", i, code, err)
			} else if string(code) != want.Error {
				result.AddError("batches[%d]: error code = %s, want %s", i, code, want.Error)
			}
			continue
		}

		result.Batches = append(result.Batches, res)
		if want.Error != "" {
			result.AddError("batches[%d]: expected error %s, batch committed", i, want.Error)
			continue
		}
		assertBatch(result, i, res, want)
	}
	return nil
}

// load returns the records of a step from its YAML records or its CSV.
func (b BatchStep) load() ([]record.Record, error) {
	if b.CSV == "" {
		return b.records()
	}
	return export.ReadRecordsCSV(strings.NewReader(b.CSV), b.Dataset, export.ReadOptions{
		TimeColumn: b.TimeColumn,
		Dimensions: b.Dimensions,
	})
}

func evaluatePanel(ctx context.Context, eng *engine.Engine, registry *dashboard.Registry, check PanelCheck, result *Result) error {
	dashName, panelName, _ := strings.Cut(check.Panel, "/")
	d, ok := registry.Get(dashName)
	if !ok {
		return fmt.Errorf("panel %s: dashboard %q not declared", check.Panel, dashName)
	}
	p, ok := d.Panel(panelName)
	if !ok {
		return fmt.Errorf("panel %s: dashboard %q has no panel %q", check.Panel, dashName, panelName)
	}

	var want PanelExpect
	if check.Expect != nil {
		want = *check.Expect
	}

	rng, err := p.ResolveRange(check.Range, eng.Now())
	if err != nil {
		return fmt.Errorf("panel %s: %w", check.Panel, err)
	}

	res, err := eng.EvaluateRange(ctx, p, rng)
	if err != nil {
		code := engine.CodeOf(err)
		if code == "" {
			return fmt.Errorf("panel %s: %w", check.Panel, err)
		}
		if want.Error == "" {
			result.AddError("%s: unexpected error %s: %v", check.Panel, code, err)
		} else if string(code) != want.Error {
			result.AddError("%s: error code = %s, want %s", check.Panel, code, want.Error)
		}
		return nil
	}

	result.Panels[check.Panel] = res
	if want.Error != "" {
		result.AddError("%s: expected error %s, evaluation succeeded", check.Panel, want.Error)
		return nil
	}
	assertPanel(result, check.Panel, res, want)
	return nil
}
