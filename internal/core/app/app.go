package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nyein/internal/core/config"
	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
	"nyein/internal/data/history"
	"nyein/internal/engine/parser"
	"nyein/internal/engine/strip"
	"nyein/internal/shared/observability"

	"github.com/google/uuid"
)

// App wires the merge pipeline to its collaborators. One App serves every
// operation of a process, including repeated watch-mode rebuilds, so parsed
// grammars and the strip cache are shared between runs.
type App struct {
	Config   *config.Config
	Paths    config.ResolvedPaths
	Parser   *parser.Parser
	Compiler ports.Compiler
	Manifest ports.ManifestStore
	History  ports.HistoryRecorder

	cache *strip.Cache
	newID func() string
}

type Option func(*App)

func WithCompiler(c ports.Compiler) Option {
	return func(a *App) { a.Compiler = c }
}

func WithManifest(m ports.ManifestStore) Option {
	return func(a *App) { a.Manifest = m }
}

func WithHistory(h ports.HistoryRecorder) Option {
	return func(a *App) { a.History = h }
}

// New resolves cfg against baseDir and loads the grammars. Collaborators not
// supplied as options stay nil; operations that need them report it.
func New(cfg *config.Config, baseDir string, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	paths, err := config.ResolvePaths(cfg, baseDir)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeValidationError, "resolve configured paths")
	}
	p, err := parser.NewDefaultParser()
	if err != nil {
		return nil, err
	}
	cache, err := strip.NewCache(cfg.Bundle.CacheSize)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "create strip cache")
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		Parser: p,
		cache:  cache,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CacheLen reports how many stripped modules are cached.
func (a *App) CacheLen() int {
	return a.cache.Len()
}

// stagingDir creates a fresh, uniquely named directory under the staging
// root. The returned cleanup removes it.
func (a *App) stagingDir() (string, func(), error) {
	dir := filepath.Join(a.Paths.StagingRoot, a.newID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", func() {}, domain.Wrap(err, domain.CodeInternal, "create staging directory")
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove staging directory", "path", dir, "error", err)
		}
	}, nil
}

// releaseStaging removes the staging root once it is empty.
func (a *App) releaseStaging() {
	_ = os.Remove(a.Paths.StagingRoot)
}

// entryPath makes a user-supplied entry absolute against the project root.
func (a *App) entryPath(entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", domain.New(domain.CodeValidationError, "entry path is required")
	}
	return config.ResolveRelative(a.Paths.ProjectRoot, entry), nil
}

// record persists the outcome of an operation when history is enabled and
// counts it. History failures never fail the build.
func (a *App) record(ctx context.Context, rec history.BuildRecord, err error) {
	rec.Outcome = history.OutcomeSuccess
	if err != nil {
		rec.Outcome = history.OutcomeFailed
		rec.ErrorCode = string(domain.CodeOf(err))
		rec.Message = err.Error()
	}
	observability.BuildsTotal.WithLabelValues(rec.Operation, rec.Outcome).Inc()
	if a.History == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = a.newID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().Add(-rec.Duration)
	}
	if recErr := a.History.Record(context.WithoutCancel(ctx), rec); recErr != nil {
		slog.Warn("failed to record build history", "operation", rec.Operation, "error", recErr)
	}
}

// RecentBuilds lists the newest history records.
func (a *App) RecentBuilds(ctx context.Context, limit int) ([]history.BuildRecord, error) {
	if a.History == nil {
		return nil, domain.New(domain.CodeNotSupported, "build history is disabled; set [history] enabled = true")
	}
	return a.History.Recent(ctx, limit)
}
