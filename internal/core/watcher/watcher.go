// # internal/core/watcher/watcher.go
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"nyein/internal/shared/observability"
	"nyein/internal/shared/util"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultExtensions are the script families a merge can read.
var DefaultExtensions = []string{".ts", ".mts", ".cts", ".js", ".mjs", ".cjs"}

type Options struct {
	// Root anchors exclude patterns; paths are matched relative to it.
	Root       string
	Debounce   time.Duration
	Exclude    []string
	Extensions []string
	// MaxRebuildsPerSecond throttles callbacks; zero means unlimited.
	MaxRebuildsPerSecond float64
}

// Watcher batches file system events under a set of directory trees and
// calls onChange with the changed files once activity settles.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	debounce   time.Duration
	exclude    []glob.Glob
	extensions map[string]bool
	limiter    *util.Limiter
	onChange   func([]string)
	callbackMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
}

func NewWatcher(opts Options, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}

	compiled := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(util.NormalizePatternPath(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid watch exclude %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	extFilter := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if normalized := strings.ToLower(strings.TrimSpace(ext)); normalized != "" {
			extFilter[normalized] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsWatcher:  fsw,
		root:       root,
		debounce:   opts.Debounce,
		exclude:    compiled,
		extensions: extFilter,
		limiter:    util.NewLimiter(opts.MaxRebuildsPerSecond, 1),
		onChange:   onChange,
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[string]time.Time),
	}, nil
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	if !w.limiter.Allow(1) {
		observability.WatcherThrottledTotal.Inc()
		if err := w.limiter.Wait(w.ctx, 1); err != nil {
			return
		}
	}
	w.onChange(paths)
}

// relative returns path relative to the root, slash separated. Callers also
// try a "/"-prefixed form so "**/node_modules/**" matches at the top level.
func (w *Watcher) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, ok := util.RelativeSlash(w.root, abs)
	if !ok {
		return "", false
	}
	return rel, true
}

func (w *Watcher) matches(candidates ...string) bool {
	for _, g := range w.exclude {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	rel, ok := w.relative(path)
	if !ok || rel == "." {
		return false
	}
	return w.matches(rel, rel+"/", "/"+rel+"/")
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	if !w.extensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	if strings.HasSuffix(strings.ToLower(path), ".d.ts") {
		return true
	}
	rel, ok := w.relative(path)
	if !ok {
		return false
	}
	return w.matches(rel, "/"+rel)
}

func (w *Watcher) Close() error {
	w.cancel()
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
