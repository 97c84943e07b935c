package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/roach88/tally/internal/chart"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/export"
)

// PanelResponse is the JSON form of an evaluated panel.
type PanelResponse struct {
	Dashboard string         `json:"dashboard"`
	Result    *engine.Result `json:"result"`
	Summary   engine.Summary `json:"summary"`
	Chart     *chart.Config  `json:"chart,omitempty"`
}

func (a *api) etag() string {
	return `"` + a.Dashboards.Hash() + `"`
}

// notModified sets the ETag and reports whether the client's copy is current.
func (a *api) notModified(w http.ResponseWriter, r *http.Request) bool {
	tag := a.etag()
	w.Header().Set("ETag", tag)
	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if c := strings.TrimSpace(candidate); c == tag || c == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

func (a *api) handleDashboardList(w http.ResponseWriter, r *http.Request) {
	if a.notModified(w, r) {
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]any{
		"dashboards": a.Dashboards.List(),
		"hash":       a.Dashboards.Hash(),
	})
}

func (a *api) handleDashboardGet(w http.ResponseWriter, r *http.Request) {
	d, ok := a.dashboard(w, r)
	if !ok {
		return
	}
	if a.notModified(w, r) {
		return
	}
	a.respondJSON(w, http.StatusOK, d)
}

func (a *api) dashboard(w http.ResponseWriter, r *http.Request) (dashboard.Dashboard, bool) {
	name := r.PathValue("name")
	d, ok := a.Dashboards.Get(name)
	if !ok {
		a.respondError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("dashboard %q not found", name))
	}
	return d, ok
}

// handlePanel evaluates one panel. Query parameters: format (json, csv or
// svg), range (overrides the declared range), width and height for svg.
func (a *api) handlePanel(w http.ResponseWriter, r *http.Request) {
	d, ok := a.dashboard(w, r)
	if !ok {
		return
	}
	p, ok := d.Panel(r.PathValue("panel"))
	if !ok {
		a.respondError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("panel %q not found in dashboard %q", r.PathValue("panel"), d.Name))
		return
	}

	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" && format != "svg" {
		a.respondError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("unknown format %q: must be json, csv or svg", format))
		return
	}

	width, height, err := svgSize(q.Get("width"), q.Get("height"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	rng, err := p.ResolveRange(q.Get("range"), a.Engine.Now())
	if err != nil {
		a.respondError(w, http.StatusBadRequest, CodeInvalidRange, err.Error())
		return
	}

	res, err := a.Engine.EvaluateRange(r.Context(), p, rng)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	switch format {
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteSeriesCSV(&buf, res); err != nil {
			a.respondErr(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.csv"`, d.Name, p.Name))
		_, _ = w.Write(buf.Bytes())

	case "svg":
		cfg, err := chart.Build(res)
		if err == nil {
			var buf bytes.Buffer
			if err = chart.RenderSVG(&buf, cfg, width, height); err == nil {
				w.Header().Set("Content-Type", "image/svg+xml")
				_, _ = w.Write(buf.Bytes())
				return
			}
		}
		if errors.Is(err, chart.ErrEmptyChart) {
			a.respondError(w, http.StatusUnprocessableEntity, CodeEmptyChart, "panel has no data in range")
			return
		}
		a.respondErr(w, r, err)

	default:
		resp := PanelResponse{Dashboard: d.Name, Result: res, Summary: engine.Summarize(res)}
		if cfg, err := chart.Build(res); err == nil {
			resp.Chart = cfg
		}
		a.respondJSON(w, http.StatusOK, resp)
	}
}

func svgSize(ws, hs string) (int, int, error) {
	width, height := DefaultSVGWidth, DefaultSVGHeight
	var err error
	if ws != "" {
		if width, err = strconv.Atoi(ws); err != nil || width < chart.MinWidth || width > MaxSVGSize {
			return 0, 0, fmt.Errorf("width must be between %d and %d", chart.MinWidth, MaxSVGSize)
		}
	}
	if hs != "" {
		if height, err = strconv.Atoi(hs); err != nil || height < chart.MinHeight || height > MaxSVGSize {
			return 0, 0, fmt.Errorf("height must be between %d and %d", chart.MinHeight, MaxSVGSize)
		}
	}
	return width, height, nil
}
