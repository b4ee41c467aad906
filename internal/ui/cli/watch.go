package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	coreapp "nyein/internal/core/app"
	"nyein/internal/core/config"
	domain "nyein/internal/core/errors"
	"nyein/internal/core/watcher"
	"nyein/internal/shared/util"
	"nyein/internal/ui/report"

	"github.com/spf13/cobra"
)

func newWatchCommand(rt *runtime) *cobra.Command {
	var flags bundleFlags
	cmd := &cobra.Command{
		Use:   "watch <entry>",
		Short: "Re-run bundle whenever a source file changes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.apply(rt, args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.watch(ctx, req)
		},
	}
	flags.register(cmd, false)
	return cmd
}

// watch bundles once, then again after every settled batch of changes,
// until ctx is cancelled. Failed rebuilds are reported and watching goes on.
func (rt *runtime) watch(ctx context.Context, req coreapp.BundleRequest) error {
	a, err := rt.newApp()
	if err != nil {
		return err
	}

	if addr := rt.cfg.Observability.MetricsAddr; addr != "" {
		srv := NewObservabilityServer(addr, coreapp.NewHealthService(a))
		if _, err := srv.Start(ctx); err != nil {
			return domain.Wrap(err, domain.CodeInternal, "start observability server")
		}
		rt.onClose(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		})
	}

	var mu sync.Mutex
	rebuild := func() {
		mu.Lock()
		defer mu.Unlock()
		res, err := a.Bundle(ctx, req)
		report.Bundle(rt.stderr, res)
		if err != nil {
			report.Error(rt.stderr, err)
		}
	}
	rebuild()

	opts := watcher.Options{
		Root:                 a.Paths.ProjectRoot,
		Debounce:             rt.cfg.Watch.Debounce,
		Exclude:              watchExcludes(a.Paths.ProjectRoot, rt.cfg.Watch.Exclude, outputDir(a.Paths, req), req.Entry),
		MaxRebuildsPerSecond: rt.cfg.Watch.MaxRebuildsPerSecond,
	}
	w, err := watcher.NewWatcher(opts, func(paths []string) {
		slog.Info("change detected", "files", len(paths))
		rebuild()
	})
	if err != nil {
		return domain.Wrap(err, domain.CodeValidationError, "configure watcher")
	}
	defer w.Close()

	roots := a.Paths.WatchPaths
	if len(roots) == 0 {
		roots = []string{a.Paths.ProjectRoot}
	}
	if err := w.Watch(roots); err != nil {
		return domain.Wrap(err, domain.CodeInternal, "watch sources")
	}
	slog.Info("watching", "roots", len(roots), "entry", req.Entry)
	<-ctx.Done()
	return nil
}

func outputDir(paths config.ResolvedPaths, req coreapp.BundleRequest) string {
	if req.OutDir != "" {
		return req.OutDir
	}
	return paths.BundleOut
}

// watchExcludes adds the merge output to the configured excludes so writing
// it does not trigger another rebuild.
func watchExcludes(root string, configured []string, outDir, entry string) []string {
	out := append([]string(nil), configured...)
	if rel, ok := util.RelativeSlash(root, outDir); ok && rel != "." {
		out = append(out, rel+"/**")
	}
	if rel, ok := util.RelativeSlash(root, filepath.Join(outDir, filepath.Base(entry))); ok {
		out = append(out, rel)
	}
	return out
}
