package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

const testDashboards = `
dashboard: traffic: {
	title: "Traffic"
	panel: visits: {
		dataset:     "web"
		measure:     "visits"
		aggregation: "sum"
		bucket:      "day"
		range:       "last_7_days"
		chart:       "bar"
		trend:       true
	}
	panel: ghost: {
		dataset: "nothing_here"
		measure: "x"
	}
}
`

type testAPI struct {
	mux    *http.ServeMux
	store  *store.Store
	engine *engine.Engine
	key    string
}

type option func(*Deps)

func newTestAPI(t *testing.T, opts ...option) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := testutil.OpenStore(t)
	clock := testutil.NewFakeClock(testutil.Epoch)
	e, err := engine.New(context.Background(), s,
		engine.WithLogger(logger),
		engine.WithIDGenerator(testutil.NewSequentialIDs("batch")),
		engine.WithNow(clock.Now),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})

	loaded, errs := dashboard.LoadString(testDashboards, dashboard.LoadModeCollectAll)
	require.Empty(t, errs)
	reg, err := dashboard.NewRegistry(loaded.Dashboards)
	require.NoError(t, err)

	key, _, err := auth.Issue(context.Background(), s, "test", testutil.Epoch)
	require.NoError(t, err)

	deps := Deps{
		Store:        s,
		Engine:       e,
		Dashboards:   reg,
		Auth:         auth.NewAuthenticator(s),
		MaxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	mux := http.NewServeMux()
	Register(mux, logger, deps)
	return &testAPI{mux: mux, store: s, engine: e, key: key}
}

func (a *testAPI) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) bearer() []string {
	return []string{"Authorization", "Bearer " + a.key}
}

const visitsJSON = `[
	{"time": "2026-03-16T10:00:00Z", "measures": {"visits": 3}, "dimensions": {"page": "/"}},
	{"time": "2026-03-17T10:00:00Z", "measures": {"visits": 5}, "dimensions": {"page": "/"}},
	{"time": "2026-03-18T10:00:00Z", "measures": {"visits": 7}, "dimensions": {"page": "/pricing"}}
]`

func (a *testAPI) seedVisits(t *testing.T) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/datasets/web/records", visitsJSON, a.bearer()...)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}
