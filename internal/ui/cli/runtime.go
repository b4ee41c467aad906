package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	coreapp "nyein/internal/core/app"
	"nyein/internal/core/config"
	domain "nyein/internal/core/errors"
	"nyein/internal/data/history"
	"nyein/internal/shared/observability"
)

type globalOptions struct {
	configPath string
	verbose    bool
}

// runtime carries process-wide state shared by the commands: the loaded
// configuration and everything that must be closed before exit.
type runtime struct {
	stdout  io.Writer
	stderr  io.Writer
	factory appFactory
	opts    globalOptions

	// started is set once the command line parsed and a command began.
	started bool
	cfg     *config.Config
	baseDir string
	closers []func()
}

func newRuntime(stdout, stderr io.Writer, factory appFactory) *runtime {
	return &runtime{stdout: stdout, stderr: stderr, factory: factory}
}

func (rt *runtime) prepare(ctx context.Context) error {
	rt.started = true
	configureLogging(rt.stderr, rt.opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		return domain.Wrap(err, domain.CodeInternal, "detect working directory")
	}
	path, err := config.Resolve(rt.opts.configPath, cwd)
	if err != nil {
		return domain.AddContext(domain.Wrap(err, domain.CodeNotFound, "config file not found"), domain.CtxPath, rt.opts.configPath)
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return domain.AddContext(domain.Wrap(err, domain.CodeValidationError, "load config"), domain.CtxPath, path)
	}

	rt.cfg = cfg
	rt.baseDir = cwd
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return domain.Wrap(err, domain.CodeInternal, "resolve config path")
		}
		rt.baseDir = filepath.Dir(abs)
		slog.Debug("config loaded", "path", abs)
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.EnableTracing,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
		Version:     versionString,
		Insecure:    true,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return nil
	}
	rt.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	})
	return nil
}

// newApp builds the App for the loaded configuration, opening the history
// store when it is enabled.
func (rt *runtime) newApp() (*coreapp.App, error) {
	var opts []coreapp.Option
	if rt.cfg.History.Enabled {
		paths, err := config.ResolvePaths(rt.cfg, rt.baseDir)
		if err != nil {
			return nil, domain.Wrap(err, domain.CodeValidationError, "resolve configured paths")
		}
		store, err := history.Open(paths.HistoryDB, rt.cfg.History.BusyTimeout)
		if err != nil {
			return nil, domain.Wrap(err, domain.CodeInternal, "open build history")
		}
		rt.onClose(func() { _ = store.Close() })
		opts = append(opts, coreapp.WithHistory(history.NewAdapter(store, rt.cfg.History.Retain)))
	}
	return rt.factory.New(rt.cfg, rt.baseDir, opts...)
}

func (rt *runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// absolute makes a user-typed path absolute against the working directory.
func absolute(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", domain.AddContext(domain.Wrap(err, domain.CodeValidationError, "invalid path"), domain.CtxPath, path)
	}
	return abs, nil
}

// configureLogging sends logs to stderr so stdout carries only command data.
func configureLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.stdout, format, args...)
}
