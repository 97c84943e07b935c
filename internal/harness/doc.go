// Package harness runs end-to-end scenarios against a fresh store: ingest
// batches through the engine, evaluate dashboard panels, and check the
// resulting series.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	now: "2026-03-18T16:00:00Z"
//	dashboards: |
//	  dashboard: traffic: {
//	    title: "Traffic"
//	    panel: visits: { dataset: "web", measure: "views", range: "last_7_days" }
//	  }
//	batches:
//	  - dataset: web
//	    records:
//	      - { time: "2026-03-16T10:00:00Z", dimensions: { page: home }, measures: { views: 3 } }
//	    expect: { inserted: 1, duplicates: 0 }
//	  - dataset: web
//	    csv: |
//	      time,page,views
//	      2026-03-17T10:00:00Z,home,5
//	panels:
//	  - panel: traffic/visits
//	    range: "all"
//	    expect:
//	      series: { "": [3, 5] }
//	      total: 8
//	      direction: up
//	    golden: true
//
// # Expectations
//
//   - batches[].expect: inserted and duplicate counts, or the engine error
//     code the batch must fail with.
//   - panels[].expect: values per group (the key "" is the ungrouped
//     series), forecast values per group, summary total and direction, or
//     the engine error code evaluation must fail with.
//   - panels[].golden: compare the series CSV against
//     testdata/golden/<scenario>_<dashboard>_<panel>.golden.
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory SQLite database with a frozen
// wall clock (now, default testutil.Epoch) and sequential batch IDs, so runs
// are reproducible and golden files are stable.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/traffic.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(context.Background(), scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
