package httpapi

import (
	"errors"
	"net/http"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/server"
	"github.com/roach88/tally/internal/store"
)

// Error codes returned in the error envelope. Engine codes are mapped onto
// these by runtimeError.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeInvalidCSV       = "INVALID_CSV"
	CodeInvalidRange     = "INVALID_RANGE"
	CodeBodyTooLarge     = "BODY_TOO_LARGE"
	CodeNotFound         = "NOT_FOUND"
	CodeEmptyChart       = "EMPTY_CHART"
	CodeQueueUnavailable = "UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (a *api) respondError(w http.ResponseWriter, status int, code, message string, details ...string) {
	a.respondJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message, Details: details}})
}

// respondErr maps an error from the engine or store onto a status and code.
// Unexpected errors are logged and reported as 500 without their text.
func (a *api) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		a.respondError(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, err.Error())
		return
	}

	var re *engine.RuntimeError
	if errors.As(err, &re) {
		status, code := runtimeError(re.Code)
		a.respondError(w, status, code, re.Message)
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		a.respondError(w, http.StatusNotFound, CodeNotFound, err.Error())
		return
	}

	a.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", server.RequestID(r.Context()),
		"err", err,
	)
	a.respondError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

func runtimeError(code engine.RuntimeErrorCode) (int, string) {
	switch code {
	case engine.ErrCodeDatasetNotFound:
		return http.StatusNotFound, CodeNotFound
	case engine.ErrCodeInvalidQuery, engine.ErrCodeInvalidRecord:
		return http.StatusBadRequest, CodeBadRequest
	case engine.ErrCodeBatchTooLarge:
		return http.StatusRequestEntityTooLarge, CodeBodyTooLarge
	case engine.ErrCodeQueueClosed:
		return http.StatusServiceUnavailable, CodeQueueUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}
