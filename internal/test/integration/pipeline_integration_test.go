package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nyein/internal/core/app"
	"nyein/internal/core/config"
	"nyein/internal/core/watcher"
	"nyein/internal/data/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFiles(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"src/a.ts":     "import 'reflect-metadata';\nimport { b } from './b';\nexport const a = 1;\nexport const useB = () => b();\n",
		"src/b.ts":     "import 'reflect-metadata';\nimport { a } from './a';\nexport const b = () => a + 1;\n",
		"src/index.ts": "import { a, useB } from './a';\nimport { b } from './b';\nconsole.log(a, b(), useB());\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newApp(t *testing.T, root string) *app.App {
	t.Helper()
	store, err := history.Open(filepath.Join(root, ".nyein", "history.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a, err := app.New(config.DefaultConfig(), root, app.WithHistory(history.NewAdapter(store, 10)))
	require.NoError(t, err)
	return a
}

func TestFullPipelineIntegration(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)
	a := newApp(t, root)
	ctx := context.Background()

	res, err := a.Bundle(ctx, app.BundleRequest{Entry: "src/index.ts"})
	require.NoError(t, err)

	require.Len(t, res.Graph.Order, 3)
	assert.Equal(t, filepath.Join(root, "src", "index.ts"), res.Graph.Order[2])
	require.Len(t, res.Graph.Warnings.Cycles, 1)
	cycle := res.Graph.Warnings.Cycles[0].String()
	assert.Contains(t, cycle, "a.ts")
	assert.Contains(t, cycle, "b.ts")

	data, err := os.ReadFile(res.OutFile)
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, 1, strings.Count(out, "import 'reflect-metadata';"))
	assert.NotContains(t, out, "from './")
	assert.True(t, strings.HasSuffix(out, "console.log(a, b(), useB());\n"))

	builds, err := a.RecentBuilds(ctx, 5)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, history.OutcomeSuccess, builds[0].Outcome)
	assert.Equal(t, 3, builds[0].Files)
	assert.Equal(t, 1, builds[0].Cycles)
}

func TestPipeline_IsIdempotentOnZeroImportFile(t *testing.T) {
	root := t.TempDir()
	src := "const answer = 42;\nconsole.log(answer);\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "solo.ts"), []byte(src), 0o644))
	a := newApp(t, root)

	empty := ""
	res, err := a.Bundle(context.Background(), app.BundleRequest{Entry: "solo.ts", Banner: &empty})
	require.NoError(t, err)
	data, err := os.ReadFile(res.OutFile)
	require.NoError(t, err)
	assert.Equal(t, src, string(data))
}

func TestWatchRebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	createTestFiles(t, root)
	a := newApp(t, root)
	ctx := context.Background()

	res, err := a.Bundle(ctx, app.BundleRequest{Entry: "src/index.ts"})
	require.NoError(t, err)

	rebuilt := make(chan error, 4)
	w, err := watcher.NewWatcher(watcher.Options{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Exclude:  []string{"dist/**", "**/._nyein/**"},
	}, func([]string) {
		_, err := a.Bundle(ctx, app.BundleRequest{Entry: "src/index.ts"})
		rebuilt <- err
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{filepath.Join(root, "src")}))

	updated := "import 'reflect-metadata';\nimport { b } from './b';\nexport const a = 2;\nexport const useB = () => b();\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte(updated), 0o644))

	select {
	case err := <-rebuilt:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}

	data, err := os.ReadFile(res.OutFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "const a = 2;")
}
