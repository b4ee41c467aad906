// # internal/core/watcher/watcher_test.go
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(Options{Root: t.TempDir()}, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadPattern(t *testing.T) {
	if _, err := NewWatcher(Options{Root: t.TempDir(), Exclude: []string{"[unclosed"}}, func([]string) {}); err == nil {
		t.Fatal("expected error for invalid exclude pattern")
	}
}

func waitFor(t *testing.T, ch <-chan []string, want string, within time.Duration) {
	t.Helper()
	timeout := time.After(within)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(Options{
		Root:     tmpDir,
		Debounce: 100 * time.Millisecond,
		Exclude:  []string{"**/generated/**", "**/*.test.ts"},
	}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "index.ts")
	if err := os.WriteFile(testFile, []byte("export const a = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	excluded := filepath.Join(tmpDir, "index.test.ts")
	if err := os.WriteFile(excluded, []byte("test"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if p == excluded {
				t.Error("excluded file triggered a change")
			}
		}
	case <-time.After(500 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "lib")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "nested.ts")
	if err := os.WriteFile(nested, []byte("export {};"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, nested, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(Options{Root: tmpDir, Debounce: 100 * time.Millisecond}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.ts")
	newPath := filepath.Join(tmpDir, "new.ts")
	if err := os.WriteFile(oldPath, []byte("export {};"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, newPath, 2*time.Second)
}

func TestWatcher_Filters(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(Options{
		Root:    root,
		Exclude: []string{"**/node_modules/**", "dist/**"},
	}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	cases := []struct {
		path    string
		exclude bool
	}{
		{filepath.Join(root, "src", "a.ts"), false},
		{filepath.Join(root, "src", "a.mjs"), false},
		{filepath.Join(root, "src", "a.d.ts"), true},
		{filepath.Join(root, "README.md"), true},
		{filepath.Join(root, "dist", "index.ts"), true},
		{filepath.Join(root, "node_modules", "pkg", "index.js"), true},
		{filepath.Join(root, "src", "node_modules", "x.js"), true},
	}
	for _, c := range cases {
		if got := w.shouldExcludeFile(c.path); got != c.exclude {
			t.Errorf("shouldExcludeFile(%s) = %v, want %v", c.path, got, c.exclude)
		}
	}

	if !w.shouldExcludeDir(filepath.Join(root, "node_modules")) {
		t.Error("expected top-level node_modules to be excluded")
	}
	if w.shouldExcludeDir(root) {
		t.Error("root must never be excluded")
	}
	if w.shouldExcludeDir(filepath.Join(root, "src")) {
		t.Error("src must not be excluded")
	}
}

func TestWatcher_ThrottlesRebuilds(t *testing.T) {
	root := t.TempDir()
	calls := make(chan time.Time, 4)
	w, err := NewWatcher(Options{Root: root, MaxRebuildsPerSecond: 4}, func([]string) {
		calls <- time.Now()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.scheduleChange(filepath.Join(root, "a.ts"))
	first := <-calls
	w.scheduleChange(filepath.Join(root, "b.ts"))
	second := <-calls
	if gap := second.Sub(first); gap < 150*time.Millisecond {
		t.Fatalf("second rebuild came %v after the first, expected throttling", gap)
	}
}
