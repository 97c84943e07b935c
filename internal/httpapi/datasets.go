package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/export"
	"github.com/roach88/tally/internal/period"
	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
)

// maxDetails caps the per-row messages returned for a rejected import.
const maxDetails = export.MaxRowErrors

func (a *api) handleDatasetList(w http.ResponseWriter, r *http.Request) {
	datasets, err := a.Store.Datasets(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]any{"datasets": datasets})
}

func (a *api) handleDatasetGet(w http.ResponseWriter, r *http.Request) {
	name, ok := a.datasetParam(w, r)
	if !ok {
		return
	}
	stats, err := a.Store.DatasetStats(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		a.respondError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("dataset %q not found", name))
		return
	}
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, stats)
}

// handleRecordsIngest accepts a JSON array of records, or an object with a
// "records" array.
func (a *api) handleRecordsIngest(w http.ResponseWriter, r *http.Request) {
	name, ok := a.datasetParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(a.limitBody(w, r))
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	records, err := decodeRecords(body)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return
	}
	if len(records) == 0 {
		a.respondError(w, http.StatusBadRequest, CodeBadRequest, "no records in request body")
		return
	}

	a.submit(w, r, engine.Batch{Dataset: name, Records: records, Source: "http"})
}

func decodeRecords(body []byte) ([]record.Record, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Records []record.Record `json:"records"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		return wrapped.Records, nil
	}
	var records []record.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	return records, nil
}

// handleCSVImport ingests a CSV body. Query parameters: time_column, and
// dimensions (comma separated) to force numeric-looking columns to be
// dimensions.
func (a *api) handleCSVImport(w http.ResponseWriter, r *http.Request) {
	name, ok := a.datasetParam(w, r)
	if !ok {
		return
	}

	opts := export.ReadOptions{TimeColumn: r.URL.Query().Get("time_column")}
	if dims := r.URL.Query().Get("dimensions"); dims != "" {
		opts.Dimensions = strings.Split(dims, ",")
	}

	known, err := a.Store.DimensionKeys(r.Context(), name)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	records, err := export.ReadRecordsCSV(a.limitBody(w, r), name, opts.WithKnownDimensions(known))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.respondErr(w, r, err)
			return
		}
		a.respondError(w, http.StatusBadRequest, CodeInvalidCSV, "CSV import rejected", csvDetails(err)...)
		return
	}
	if len(records) == 0 {
		a.respondError(w, http.StatusBadRequest, CodeBadRequest, "no rows in CSV body")
		return
	}

	a.submit(w, r, engine.Batch{Dataset: name, Records: records, Source: "csv"})
}

func csvDetails(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		if len(out) == maxDetails {
			break
		}
		out = append(out, e.Error())
	}
	return out
}

func (a *api) submit(w http.ResponseWriter, r *http.Request, b engine.Batch) {
	res, err := a.Engine.Submit(r.Context(), b)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusAccepted, res)
}

// handleExport streams the raw records of a dataset as CSV. Query
// parameters: from, to (any form period.ParseTime accepts) and limit.
func (a *api) handleExport(w http.ResponseWriter, r *http.Request) {
	name, ok := a.datasetParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := optionalTime(q.Get("from"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, CodeInvalidRange, "from: "+err.Error())
		return
	}
	to, err := optionalTime(q.Get("to"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, CodeInvalidRange, "to: "+err.Error())
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			a.respondError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a non-negative integer")
			return
		}
	}

	exists, err := a.Store.HasDataset(r.Context(), name)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if !exists {
		a.respondError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("dataset %q not found", name))
		return
	}

	records, err := a.Store.ReadRecords(r.Context(), name, from, to, limit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))
	if err := export.WriteRecordsCSV(w, records); err != nil {
		a.logger.Error("export failed", "dataset", name, "err", err)
	}
}

func optionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return period.ParseTime(s)
}

func (a *api) datasetParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("dataset")
	if !record.ValidName(name) {
		a.respondError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid dataset name %q", name))
		return "", false
	}
	return name, true
}

func (a *api) limitBody(w http.ResponseWriter, r *http.Request) io.Reader {
	if a.MaxBodyBytes <= 0 {
		return r.Body
	}
	return http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
}
