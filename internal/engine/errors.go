package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while ingesting or evaluating.
//
// RuntimeError includes structured fields for diagnostics; httpapi maps the
// code to a status and the CLI to an exit code.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Dataset identifies the affected dataset, if any.
	Dataset string

	// Panel identifies the panel being evaluated, if any.
	Panel string

	// Index is the position of the offending record for INVALID_RECORD.
	Index int

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidQuery indicates a panel compiled to an invalid query.
	ErrCodeInvalidQuery RuntimeErrorCode = "INVALID_QUERY"

	// ErrCodeDatasetNotFound indicates a panel or export references a dataset
	// that has never received data.
	ErrCodeDatasetNotFound RuntimeErrorCode = "DATASET_NOT_FOUND"

	// ErrCodeQueueClosed indicates Submit was called after the writer stopped.
	ErrCodeQueueClosed RuntimeErrorCode = "QUEUE_CLOSED"

	// ErrCodeInvalidRecord indicates a submitted record failed validation.
	ErrCodeInvalidRecord RuntimeErrorCode = "INVALID_RECORD"

	// ErrCodeBatchTooLarge indicates a batch exceeds the configured maximum.
	ErrCodeBatchTooLarge RuntimeErrorCode = "BATCH_TOO_LARGE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Dataset != "" && e.Panel != "":
		msg += fmt.Sprintf(" (dataset=%s, panel=%s)", e.Dataset, e.Panel)
	case e.Dataset != "":
		msg += fmt.Sprintf(" (dataset=%s)", e.Dataset)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the RuntimeErrorCode carried by err, or "" if err is not a
// RuntimeError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsNotFound returns true if err is a DATASET_NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeDatasetNotFound
}
