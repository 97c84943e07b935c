package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/export"
	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	TimeColumn string
	Dimensions []string
}

// IngestResult summarises an offline import.
type IngestResult struct {
	Dataset    string               `json:"dataset"`
	File       string               `json:"file"`
	Rows       int                  `json:"rows"`
	Inserted   int                  `json:"inserted"`
	Duplicates int                  `json:"duplicates"`
	Batches    []engine.BatchResult `json:"batches"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <dataset> <file.csv>",
		Short: "Import a CSV file into a dataset",
		Long: `Import records from a CSV file into a dataset.

The file needs a header row and a time column. Columns whose non-empty cells
are all numeric become measures; everything else becomes a dimension, as do
columns the dataset already stores as dimensions. A single bad row rejects
the whole file. Rows already stored are counted as duplicates.
Use "-" to read from stdin.

Example:
  tally ingest visits ./visits.csv
  tally ingest sales ./sales.csv --time-column sold_at --dimensions zip`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TimeColumn, "time-column", "time", "name of the timestamp column")
	cmd.Flags().StringSliceVar(&opts.Dimensions, "dimensions", nil, "columns to keep as dimensions even when numeric")

	return cmd
}

func runIngest(opts *IngestOptions, dataset, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	if !record.ValidName(dataset) {
		return f.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("invalid dataset name %q", dataset), nil, nil)
	}

	in, name, err := openInput(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to open input", err, nil)
	}
	defer in.Close()

	cfg, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st, logr)

	known, err := st.DimensionKeys(cmd.Context(), dataset)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStore, "failed to read dataset dimensions", err, nil)
	}

	readOpts := export.ReadOptions{TimeColumn: opts.TimeColumn, Dimensions: opts.Dimensions}
	records, err := export.ReadRecordsCSV(in, dataset, readOpts.WithKnownDimensions(known))
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeRejected, "CSV rejected", err, rowErrorDetails(err))
	}
	f.VerboseLog("Parsed %d record(s) from %s", len(records), name)

	result := IngestResult{Dataset: dataset, File: name, Rows: len(records)}
	err = withWriter(cmd.Context(), st, logr, cfg.Ingest.MaxBatch, func(ctx context.Context, eng *engine.Engine) error {
		for start := 0; start < len(records); start += cfg.Ingest.MaxBatch {
			end := min(start+cfg.Ingest.MaxBatch, len(records))
			res, err := eng.Submit(ctx, engine.Batch{
				Dataset: dataset,
				Records: records[start:end],
				Source:  "csv:" + filepath.Base(name),
			})
			if err != nil {
				return err
			}
			f.VerboseLog("Batch %s: %d inserted, %d duplicate(s)", res.ID, res.Inserted, res.Duplicates)
			result.Inserted += res.Inserted
			result.Duplicates += res.Duplicates
			result.Batches = append(result.Batches, res)
		}
		return nil
	})
	if err != nil {
		return f.Fail(ExitFailure, runtimeCode(err), "ingest failed", err, nil)
	}

	if f.JSON() {
		return f.Success(result)
	}
	f.Okf("%s rows from %s into %s: %s inserted, %s duplicate(s)",
		formatNumber(float64(result.Rows)), name, bold.Sprint(dataset),
		formatNumber(float64(result.Inserted)), formatNumber(float64(result.Duplicates)))
	return nil
}

// withWriter runs an engine writer loop for the duration of fn and drains
// it before returning.
func withWriter(parent context.Context, st *store.Store, logr *slog.Logger, maxBatch int, fn func(context.Context, *engine.Engine) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	eng, err := engine.New(ctx, st, engine.WithLogger(logr), engine.WithMaxBatch(maxBatch))
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- eng.Run(ctx)
	}()

	fnErr := fn(ctx, eng)
	eng.Stop()
	runErr := <-done
	if fnErr != nil {
		return fnErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// openInput opens path, or stdin for "-".
func openInput(path string, stdin io.Reader) (io.ReadCloser, string, error) {
	if path == "-" {
		return io.NopCloser(stdin), "stdin", nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

// rowErrorDetails lists per-row CSV errors for JSON output.
func rowErrorDetails(err error) []map[string]any {
	var details []map[string]any
	for _, e := range unwrapJoined(err) {
		var rowErr *export.RowError
		if !errors.As(e, &rowErr) {
			continue
		}
		d := map[string]any{"line": rowErr.Line, "message": rowErr.Err.Error()}
		if rowErr.Column != "" {
			d["column"] = rowErr.Column
		}
		details = append(details, d)
	}
	return details
}

// runtimeCode returns the engine error code carried by err, or the generic
// CLI code.
func runtimeCode(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
