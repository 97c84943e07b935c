package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// startEngine opens a store, starts the writer and stops it at cleanup.
func startEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s := testutil.OpenStore(t)
	clock := testutil.NewFakeClock(testutil.Epoch)
	base := []Option{
		WithLogger(discardLogger),
		WithIDGenerator(testutil.NewSequentialIDs("batch")),
		WithNow(clock.Now),
	}
	e, err := New(context.Background(), s, append(base, opts...)...)
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
	return e, s
}
