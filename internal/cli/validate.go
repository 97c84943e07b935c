package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/dashboard"
)

// ValidationIssue is one problem found in a dashboards directory.
type ValidationIssue struct {
	Code      string `json:"code"`
	Dashboard string `json:"dashboard,omitempty"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Files      int               `json:"files"`
	Dashboards []string          `json:"dashboards"`
	Errors     []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <dashboards-dir>",
		Short: "Validate dashboard definitions",
		Long: `Load, compile and validate every CUE dashboard in a directory.

All errors are reported, each with a code (D001-D099 for loading and
compiling, D100-D199 for validation) and a source position where known.
Nothing is read from the database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	result, errs := dashboard.LoadDir(dir, dashboard.LoadModeCollectAll)

	// Directory missing, no files, CUE that does not build.
	if result == nil {
		return failLoad(f, errs)
	}
	f.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	out := ValidationResult{
		Valid:      len(errs) == 0,
		Files:      result.FileCount,
		Dashboards: make([]string, 0, len(result.Dashboards)),
		Errors:     loadIssues(errs),
	}
	for _, d := range result.Dashboards {
		out.Dashboards = append(out.Dashboards, d.Name)
	}

	if !out.Valid {
		if f.JSON() {
			_ = f.Error(out.Errors[0].Code, "dashboards invalid", out)
		} else {
			for _, issue := range out.Errors {
				writeIssue(f, issue)
			}
			red.Fprintf(f.Writer, "✗ %d error(s)\n", len(out.Errors))
		}
		return NewExitError(ExitFailure, "dashboards invalid")
	}

	if f.JSON() {
		return f.Success(out)
	}
	f.Okf("All dashboards valid (%d dashboard(s), %d file(s))", len(out.Dashboards), out.Files)
	return nil
}

func writeIssue(f *OutputFormatter, issue ValidationIssue) {
	if issue.File != "" {
		faint.Fprintf(f.Writer, "%s:%d:%d: ", issue.File, issue.Line, issue.Column)
	}
	red.Fprintf(f.Writer, "[%s] ", issue.Code)
	if issue.Dashboard != "" {
		bold.Fprintf(f.Writer, "%s: ", issue.Dashboard)
	}
	fmt.Fprintln(f.Writer, issue.Message)
}

// loadIssues converts loader errors into issues. Errors that are not
// LoadErrors get the generic code.
func loadIssues(errs []error) []ValidationIssue {
	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		var loadErr *dashboard.LoadError
		if !errors.As(err, &loadErr) {
			issues = append(issues, ValidationIssue{Code: dashboard.ErrCodeGeneric, Message: err.Error()})
			continue
		}
		issue := ValidationIssue{Code: loadErr.Code, Dashboard: loadErr.Dashboard, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.File = loadErr.Pos.Filename()
			issue.Line = loadErr.Pos.Line()
			issue.Column = loadErr.Pos.Column()
		}
		issues = append(issues, issue)
	}
	return issues
}
