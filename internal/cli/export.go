package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/export"
	"github.com/roach88/tally/internal/record"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Out   string
	From  string
	To    string
	Limit int
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <dataset>",
		Short: "Write a dataset's raw records as CSV",
		Long: `Write a dataset's raw records as CSV, oldest first.

The output can be imported again with "tally ingest" and yields the same
record IDs.

Example:
  tally export visits > visits.csv
  tally export visits --from 2024-01-01 --to 2024-02-01 --out january.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.From, "from", "", "inclusive start time")
	cmd.Flags().StringVar(&opts.To, "to", "", "exclusive end time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records (0 for all)")

	return cmd
}

func runExport(opts *ExportOptions, dataset string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	if !record.ValidName(dataset) {
		return f.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("invalid dataset name %q", dataset), nil, nil)
	}
	from, err := optionalTime(opts.From)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid --from", err, nil)
	}
	to, err := optionalTime(opts.To)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid --to", err, nil)
	}
	if opts.Limit < 0 {
		return f.Fail(ExitCommandError, ErrCodeInput, "--limit must not be negative", nil, nil)
	}

	_, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st, logr)

	ok, err := st.HasDataset(cmd.Context(), dataset)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read dataset", err, nil)
	}
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("dataset %q not found", dataset), nil, nil)
	}

	records, err := st.ReadRecords(cmd.Context(), dataset, from, to, opts.Limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read records", err, nil)
	}

	err = writeOutput(opts.Out, f.Writer, func(w io.Writer) error {
		return export.WriteRecordsCSV(w, records)
	})
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to write CSV", err, nil)
	}

	if opts.Out != "" {
		if f.JSON() {
			return f.Success(map[string]any{"dataset": dataset, "file": opts.Out, "records": len(records)})
		}
		f.Okf("%s records from %s written to %s", formatNumber(float64(len(records))), bold.Sprint(dataset), opts.Out)
	}
	return nil
}

// optionalTime parses s, treating "" as unbounded.
func optionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return export.ParseTime(s)
}

// writeOutput runs write against path, or against stdout when path is empty.
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
