package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/chart"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/export"
)

// Panel render formats.
const (
	RenderSVG  = "svg"
	RenderCSV  = "csv"
	RenderJSON = "json"
)

// Default SVG size for rendered panels.
const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// PanelOptions holds flags for the panel command.
type PanelOptions struct {
	*RootOptions
	As     string
	Out    string
	Range  string
	Width  int
	Height int
}

// PanelOutput is the JSON rendering of an evaluated panel.
type PanelOutput struct {
	Dashboard string         `json:"dashboard"`
	Result    *engine.Result `json:"result"`
	Summary   engine.Summary `json:"summary"`
	Chart     *chart.Config  `json:"chart,omitempty"`
}

// NewPanelCommand creates the panel command.
func NewPanelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PanelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "panel <dashboards-dir> <dashboard> <panel>",
		Short: "Render one dashboard panel as SVG, CSV or JSON",
		Long: `Evaluate one panel of a dashboard against the database and render it.

Example:
  tally panel ./dashboards traffic visits --out visits.svg
  tally panel ./dashboards traffic visits --as csv --range last_90_days
  tally panel ./dashboards sales revenue --as json --width 1200 --height 500`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPanel(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", RenderSVG, "render format (svg|csv|json)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Range, "range", "", "override the panel's range")
	cmd.Flags().IntVar(&opts.Width, "width", DefaultWidth, "SVG width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", DefaultHeight, "SVG height in pixels")

	return cmd
}

func runPanel(opts *PanelOptions, dir, dashName, panelName string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	switch opts.As {
	case RenderSVG, RenderCSV, RenderJSON:
	default:
		return f.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("unknown render format %q: must be svg, csv or json", opts.As), nil, nil)
	}
	if opts.Width < chart.MinWidth || opts.Height < chart.MinHeight {
		return f.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("size must be at least %dx%d", chart.MinWidth, chart.MinHeight), nil, nil)
	}

	result, loadErrs := dashboard.LoadDir(dir, dashboard.LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return failLoad(f, loadErrs)
	}
	var d *dashboard.Dashboard
	for i := range result.Dashboards {
		if result.Dashboards[i].Name == dashName {
			d = &result.Dashboards[i]
		}
	}
	if d == nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("dashboard %q not found in %s", dashName, dir), nil, nil)
	}
	p, ok := d.Panel(panelName)
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("panel %q not found in dashboard %q", panelName, dashName), nil, nil)
	}

	_, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st, logr)

	eng, err := engine.New(cmd.Context(), st, engine.WithLogger(logr))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to start engine", err, nil)
	}
	rng, err := p.ResolveRange(opts.Range, eng.Now())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid range", err, nil)
	}
	res, err := eng.EvaluateRange(cmd.Context(), p, rng)
	if err != nil {
		return failEvaluate(f, err)
	}
	f.VerboseLog("Evaluated %s/%s over %s: %d group(s)", d.Name, p.Name, rng, len(res.Groups))

	var buf bytes.Buffer
	if err := renderPanel(&buf, opts, d.Name, res); err != nil {
		if errors.Is(err, chart.ErrEmptyChart) {
			return f.Fail(ExitFailure, ErrCodeEmpty, "panel has no data in range", nil, nil)
		}
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to render panel", err, nil)
	}
	err = writeOutput(opts.Out, f.Writer, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to write output", err, nil)
	}

	if opts.Out != "" && !f.JSON() {
		f.Okf("%s/%s written to %s", d.Name, p.Name, opts.Out)
	}
	return nil
}

func renderPanel(w io.Writer, opts *PanelOptions, dashName string, res *engine.Result) error {
	switch opts.As {
	case RenderCSV:
		return export.WriteSeriesCSV(w, res)
	case RenderJSON:
		out := PanelOutput{Dashboard: dashName, Result: res, Summary: engine.Summarize(res)}
		if cfg, err := chart.Build(res); err == nil {
			out.Chart = cfg
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	cfg, err := chart.Build(res)
	if err != nil {
		return err
	}
	return chart.RenderSVG(w, cfg, opts.Width, opts.Height)
}

// failLoad reports dashboard load errors with their codes.
func failLoad(f *OutputFormatter, errs []error) error {
	issues := loadIssues(errs)
	if len(issues) == 0 {
		return f.Fail(ExitCommandError, dashboard.ErrCodeGeneric, "failed to load dashboards", nil, nil)
	}
	return f.Fail(ExitCommandError, issues[0].Code, "failed to load dashboards", errs[0], issues)
}
