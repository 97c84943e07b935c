package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/chart"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/export"
	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Measure  string
	Agg      string
	Bucket   string
	Range    string
	GroupBy  string
	Filters  []string
	Trend    bool
	Forecast int
	CSV      bool
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Result  *engine.Result `json:"result"`
	Summary engine.Summary `json:"summary"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <dataset>",
		Short: "Aggregate a dataset into a bucketed series",
		Long: `Aggregate a dataset without defining a dashboard.

The flags mirror the fields of a dashboard panel and are validated the same
way. Buckets without data are reported as zero.

Example:
  tally query visits --measure sessions --bucket week --range last_12_weeks
  tally query sales --measure amount --agg avg --group-by region --trend --forecast 4
  tally query orders --agg count --filter status=paid --csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Measure, "measure", "", "measure to aggregate (not needed for count)")
	cmd.Flags().StringVar(&opts.Agg, "agg", string(dashboard.DefaultAggregation), "aggregation (sum|count|avg|min|max)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", string(dashboard.DefaultBucket), "bucket granularity (hour|day|week|month|year)")
	cmd.Flags().StringVar(&opts.Range, "range", dashboard.DefaultRange, "time range expression")
	cmd.Flags().StringVar(&opts.GroupBy, "group-by", "", "dimension to split series by")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "dimension filter key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Trend, "trend", false, "fit a least-squares trend line")
	cmd.Flags().IntVar(&opts.Forecast, "forecast", 0, "buckets to project the trend forward (requires --trend)")
	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "write the series as CSV")

	return cmd
}

func (o *QueryOptions) panel(dataset string) (dashboard.Panel, error) {
	filter, err := parseFilters(o.Filters)
	if err != nil {
		return dashboard.Panel{}, err
	}
	return dashboard.Panel{
		Name:        "query",
		Title:       dataset,
		Dataset:     dataset,
		Measure:     o.Measure,
		Aggregation: queryir.AggFunc(o.Agg),
		Bucket:      period.Granularity(o.Bucket),
		Range:       o.Range,
		GroupBy:     o.GroupBy,
		Filter:      filter,
		Chart:       dashboard.Line,
		Trend:       o.Trend,
		Forecast:    o.Forecast,
	}, nil
}

func runQuery(opts *QueryOptions, dataset string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	p, err := opts.panel(dataset)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid filter", err, nil)
	}
	if errs := dashboard.Validate(dashboard.Dashboard{Name: "query", Title: dataset, Panels: []dashboard.Panel{p}}); len(errs) > 0 {
		return f.Fail(ExitCommandError, errs[0].Code, "invalid query", errs[0], errs)
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
	res, err := eng.Evaluate(cmd.Context(), p)
	if err != nil {
		return failEvaluate(f, err)
	}

	switch {
	case opts.CSV:
		if err := export.WriteSeriesCSV(f.Writer, res); err != nil {
			return f.Fail(ExitFailure, ErrCodeGeneric, "failed to write CSV", err, nil)
		}
		return nil
	case f.JSON():
		return f.Success(QueryResult{Result: res, Summary: engine.Summarize(res)})
	}
	return writeSeriesTable(f.Writer, res)
}

// failEvaluate maps evaluation errors to exit codes.
func failEvaluate(f *OutputFormatter, err error) error {
	if engine.IsNotFound(err) {
		return f.Fail(ExitCommandError, runtimeCode(err), "dataset not found", err, nil)
	}
	return f.Fail(ExitFailure, runtimeCode(err), "evaluation failed", err, nil)
}

// writeSeriesTable prints one row per bucket and group followed by the
// summary line.
func writeSeriesTable(w io.Writer, res *engine.Result) error {
	g := res.Panel.Bucket
	grouped := res.Panel.GroupBy != ""
	trend := res.Panel.Trend

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"BUCKET"}
	if grouped {
		header = append(header, strings.ToUpper(res.Panel.GroupBy))
	}
	header = append(header, "VALUE", "COUNT")
	if trend {
		header = append(header, "TREND")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, gs := range res.Groups {
		for i, pt := range gs.Points {
			row := []string{period.Label(pt.Bucket, g)}
			if grouped {
				row = append(row, groupLabel(gs.Name))
			}
			row = append(row, formatNumber(pt.Value), formatNumber(float64(pt.Count)))
			if trend {
				cell := ""
				if i < len(gs.Fitted) {
					cell = formatNumber(chart.RoundTo2(gs.Fitted[i]))
				}
				row = append(row, cell)
			}
			fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
		}
		for _, pt := range gs.Forecast {
			row := []string{period.Label(pt.Bucket, g)}
			if grouped {
				row = append(row, groupLabel(gs.Name))
			}
			row = append(row, "", "", formatNumber(chart.RoundTo2(pt.Value)))
			fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := engine.Summarize(res)
	paint := trendColor(s.Direction)
	_, err := fmt.Fprintf(w, "\n%s %s  %s %s  %s\n",
		bold.Sprint("total"), formatNumber(chart.RoundTo2(s.Total)),
		bold.Sprint("latest"), formatNumber(chart.RoundTo2(s.Latest)),
		paint("%s %s", s.Direction.Arrow(), formatChange(s)))
	return err
}

func groupLabel(name string) string {
	if name == "" {
		return chart.NoGroupLabel
	}
	return name
}

// parseFilters turns key=value flags into a panel filter.
func parseFilters(flags []string) (map[string][]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	filter := make(map[string][]string)
	for _, kv := range flags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("filter %q must be key=value", kv)
		}
		filter[key] = append(filter[key], value)
	}
	return filter, nil
}
