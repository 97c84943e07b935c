package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/httpapi"
	"github.com/roach88/tally/internal/logger"
	"github.com/roach88/tally/internal/server"
	"github.com/roach88/tally/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr       string
	Dashboards string
	NoAuth     bool

	// Ready, when set, receives the bound address once the server listens
	// (for testing).
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the tally HTTP API.

Configuration comes from defaults, then the --config YAML file, then TALLY_*
environment variables, then flags. Dashboards are loaded from the dashboards
directory and reloaded on SIGHUP.

Example:
  tally serve --config tally.yaml
  tally serve --db ./tally.db --addr :9090 --dashboards ./dashboards`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Dashboards, "dashboards", "", "dashboards directory (overrides config)")
	cmd.Flags().BoolVar(&opts.NoAuth, "no-auth", false, "accept ingest without API keys")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err, nil)
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	if opts.Dashboards != "" {
		cfg.Dashboards.Dir = opts.Dashboards
	}
	if opts.NoAuth {
		cfg.Auth.Required = false
	}
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}

	logr, err := logger.New(cmd.ErrOrStderr(), cfg.Env, level, cfg.Log.Format)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid log settings", err, nil)
	}

	logr.Info("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err, nil)
	}
	defer closeStore(st, logr)

	registry, err := loadRegistry(cfg.Dashboards.Dir, logr)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRejected, "failed to load dashboards", err, nil)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	eng, err := engine.New(ctx, st, engine.WithLogger(logr), engine.WithMaxBatch(cfg.Ingest.MaxBatch))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to start engine", err, nil)
	}

	var authn *auth.Authenticator
	if cfg.Auth.Required {
		authn = auth.NewAuthenticator(st)
	} else {
		logr.Warn("ingest authentication disabled")
	}

	srv := server.New(cfg, logr)
	httpapi.Register(srv.Mux(), logr, httpapi.Deps{
		Store:        st,
		Engine:       eng,
		Dashboards:   registry,
		Auth:         authn,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		for {
			select {
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					reloadRegistry(registry, cfg.Dashboards.Dir, logr)
					continue
				}
				logr.Info("received signal, shutting down", "signal", sig.String())
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if opts.Ready != nil {
		go notifyReady(ctx, srv, opts.Ready)
	}

	if serveErr := runUntilShutdown(ctx, srv, eng, logr); serveErr != nil {
		return f.Fail(ExitFailure, ErrCodeServe, "server error", serveErr, nil)
	}

	logr.Info("server stopped gracefully")
	return nil
}

// runner is the part of server.Server that runUntilShutdown drives.
type runner interface {
	Run(ctx context.Context) error
}

// runUntilShutdown serves until ctx is done. The writer runs on its own
// context: it is stopped only after the HTTP server has finished draining,
// so batches submitted by in-flight requests are still committed.
func runUntilShutdown(ctx context.Context, srv runner, eng *engine.Engine, logr *slog.Logger) error {
	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(engineCtx)
	}()

	serveErr := srv.Run(ctx)
	eng.Stop()
	if err := <-engineDone; err != nil {
		logr.Error("ingest writer stopped with error", "error", err)
	}
	return serveErr
}

// loadRegistry loads dashboards from dir. A missing directory starts the
// server with no dashboards.
func loadRegistry(dir string, logr *slog.Logger) (*dashboard.Registry, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logr.Warn("dashboards directory not found, serving no dashboards", "dir", dir)
		return dashboard.NewRegistry(nil)
	}
	result, errs := dashboard.LoadDir(dir, dashboard.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	logr.Info("dashboards loaded", "dir", dir, "count", len(result.Dashboards), "files", result.FileCount)
	return dashboard.NewRegistry(result.Dashboards)
}

// reloadRegistry swaps in freshly loaded dashboards. On any error the
// current set stays in place.
func reloadRegistry(registry *dashboard.Registry, dir string, logr *slog.Logger) {
	result, errs := dashboard.LoadDir(dir, dashboard.LoadModeCollectAll)
	if len(errs) > 0 {
		logr.Error("dashboard reload failed, keeping current set", "dir", dir, "error", errors.Join(errs...))
		return
	}
	if err := registry.Replace(result.Dashboards); err != nil {
		logr.Error("dashboard reload failed, keeping current set", "dir", dir, "error", err)
		return
	}
	logr.Info("dashboards reloaded", "count", len(result.Dashboards), "hash", registry.Hash())
}

func notifyReady(ctx context.Context, srv *server.Server, ready chan<- string) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if addr := srv.Addr(); addr != nil {
			select {
			case ready <- addr.String():
			case <-ctx.Done():
			}
			return
		}
	}
}
