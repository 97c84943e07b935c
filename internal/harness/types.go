package harness

import (
	"fmt"

	"github.com/roach88/tally/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation matched.
	Pass bool `json:"pass"`

	// Batches holds the committed batch results in submission order.
	// Failed batches are left out.
	Batches []engine.BatchResult `json:"batches"`

	// Panels holds evaluated panels keyed by "<dashboard>/<panel>".
	// Panels whose evaluation failed are left out.
	Panels map[string]*engine.Result `json:"panels"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Batches: []engine.BatchResult{},
		Panels:  make(map[string]*engine.Result),
		Errors:  []string{},
	}
}

// AddError records an expectation failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
