package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	coreapp "nyein/internal/core/app"
	"nyein/internal/core/config"
	"nyein/internal/core/ports"
	"nyein/internal/data/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompiler struct {
	mu       sync.Mutex
	requests []ports.CompileRequest
}

func (f *fakeCompiler) Compile(_ context.Context, req ports.CompileRequest) (ports.CompileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.NoEmit {
		return ports.CompileResult{}, nil
	}
	stem := strings.TrimSuffix(filepath.Base(req.Files[0]), filepath.Ext(req.Files[0]))
	var res ports.CompileResult
	if !req.EmitDeclarationOnly {
		res.Files = append(res.Files, ports.EmittedFile{Name: stem + ".js", Contents: []byte("// " + string(req.Module))})
	}
	if req.Declaration || req.EmitDeclarationOnly {
		res.Files = append(res.Files, ports.EmittedFile{Name: stem + ".d.ts", Contents: []byte("export declare const a: number;")})
	}
	return res, nil
}

type testFactory struct {
	compiler *fakeCompiler
}

func (f testFactory) New(cfg *config.Config, baseDir string, opts ...coreapp.Option) (*coreapp.App, error) {
	paths, err := config.ResolvePaths(cfg, baseDir)
	if err != nil {
		return nil, err
	}
	base := []coreapp.Option{
		coreapp.WithCompiler(f.compiler),
		coreapp.WithManifest(manifest.NewStore(paths.Manifest)),
	}
	return coreapp.New(cfg, baseDir, append(base, opts...)...)
}

type harness struct {
	t        *testing.T
	root     string
	config   string
	compiler *fakeCompiler
}

func newHarness(t *testing.T, toml string, files map[string]string) *harness {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfgPath := filepath.Join(root, config.DefaultFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte(toml), 0o644))
	return &harness{t: t, root: root, config: cfgPath, compiler: &fakeCompiler{}}
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", h.config}, args...)
	code := run(args, &stdout, &stderr, testFactory{compiler: h.compiler})
	return code, stdout.String(), stderr.String()
}

func (h *harness) path(rel string) string {
	return filepath.Join(h.root, filepath.FromSlash(rel))
}

const bundleConfig = `
[bundle]
out_dir = "build"
`

func TestRun_UsageErrors(t *testing.T) {
	h := newHarness(t, bundleConfig, nil)

	cases := [][]string{
		{"bundle"},
		{"bundle", "a.ts", "b.ts"},
		{"bundle", "--bogus", "a.ts"},
		{"unknown-command"},
		{"history", "--format", "xml"},
	}
	for _, args := range cases {
		code, _, stderr := h.run(args...)
		assert.Equal(t, 2, code, "args %v", args)
		assert.Contains(t, stderr, "Usage:", "args %v", args)
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--version"}, &stdout, &stderr, testFactory{compiler: &fakeCompiler{}})
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), versionString)
}

func TestRun_MissingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", filepath.Join(t.TempDir(), "missing.toml"), "bundle", "x.ts"}, &stdout, &stderr, testFactory{compiler: &fakeCompiler{}})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "config file not found")
}

func TestBundleCommand(t *testing.T) {
	h := newHarness(t, bundleConfig, map[string]string{
		"src/a.ts":     "export const a = 1;\n",
		"src/index.ts": "import { a } from './a';\nexport const b = a + 1;\n",
	})

	code, _, stderr := h.run("bundle", h.path("src/index.ts"))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "merged")

	data, err := os.ReadFile(h.path("build/index.ts"))
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, config.DefaultBanner))
	assert.Less(t, strings.Index(out, "const a = 1;"), strings.Index(out, "const b = a + 1;"))
	assert.NotContains(t, out, "import")

	require.Len(t, h.compiler.requests, 1)
	assert.True(t, h.compiler.requests[0].NoEmit)
}

func TestBundleCommand_NoCheckAndNoBanner(t *testing.T) {
	h := newHarness(t, bundleConfig, map[string]string{
		"src/index.ts": "export const b = 1;\n",
	})

	code, _, stderr := h.run("bundle", "--no-check", "--no-banner", "--out", h.path("out"), h.path("src/index.ts"))
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, h.compiler.requests)

	data, err := os.ReadFile(h.path("out/index.ts"))
	require.NoError(t, err)
	assert.Equal(t, "const b = 1;\n", string(data))
}

func TestBundleCommand_Collisions(t *testing.T) {
	h := newHarness(t, bundleConfig, map[string]string{
		"src/a.ts":     "export const x = 1;\n",
		"src/b.ts":     "export const x = 2;\n",
		"src/index.ts": "import { x } from './a';\nimport { x as y } from './b';\nexport const sum = x + y;\n",
	})

	code, _, stderr := h.run("bundle", "--no-check", h.path("src/index.ts"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "duplicate top-level declarations")
	assert.Contains(t, stderr, "src/a.ts")
	assert.Contains(t, stderr, "     1: export const x = 1;")
	assert.NoFileExists(t, h.path("build/index.ts"))

	code, _, stderr = h.run("bundle", "--no-check", "--rename-duplicates", h.path("src/index.ts"))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "src/b.ts -> $2x")

	data, err := os.ReadFile(h.path("build/index.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "const $1x = 1;")
	assert.Contains(t, string(data), "const $2x = 2;")
	assert.Contains(t, string(data), "const sum = $1x + $2x;")
}

func TestBundleCommand_Check(t *testing.T) {
	h := newHarness(t, bundleConfig, map[string]string{
		"src/index.ts": "export const b = 1;\n",
	})
	entry := h.path("src/index.ts")

	code, _, stderr := h.run("bundle", "--no-check", entry)
	require.Equal(t, 0, code, stderr)

	code, _, stderr = h.run("bundle", "--no-check", "--check", entry)
	assert.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "up to date")

	require.NoError(t, os.WriteFile(entry, []byte("export const b = 2;\n"), 0o644))
	code, _, stderr = h.run("bundle", "--no-check", "--check", entry)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "out of date")
	assert.Contains(t, stderr, "+ const b = 2;")

	data, err := os.ReadFile(h.path("build/index.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "const b = 1;")
}

func TestNpmCommand(t *testing.T) {
	h := newHarness(t, `
[npm]
out_dir = "dist"

[[npm.entries]]
key = "main"
path = "src/index.ts"
`, map[string]string{
		"package.json": `{"name": "pkg", "version": "1.0.0"}`,
		"src/index.ts": "export const a = 1;\n",
	})

	code, _, stderr := h.run("npm")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "package.json updated")

	assert.FileExists(t, h.path("dist/cjs/index.js"))
	assert.FileExists(t, h.path("dist/esm/index.mjs"))
	assert.FileExists(t, h.path("dist/esm/index.d.mts"))

	data, err := os.ReadFile(h.path("package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"types": "./dist/esm/index.d.mts"`)
	assert.Contains(t, string(data), `"require": "./dist/cjs/index.js"`)
}

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t, bundleConfig+`
[history]
enabled = true
path = "state/history.db"
`, map[string]string{
		"src/index.ts": "export const b = 1;\n",
	})

	code, _, stderr := h.run("bundle", "--no-check", h.path("src/index.ts"))
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := h.run("history", "--format", "tsv")
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "\tbundle\t")
	assert.Contains(t, lines[1], "\tsuccess\t")

	code, stdout, _ = h.run("history", "--format", "json")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"Operation": "bundle"`)
}

func TestHistoryCommand_Disabled(t *testing.T) {
	h := newHarness(t, bundleConfig, nil)
	code, _, stderr := h.run("history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "build history is disabled")
}

func TestWatchExcludes(t *testing.T) {
	root := filepath.FromSlash("/p")
	got := watchExcludes(root, []string{"**/node_modules/**"}, filepath.Join(root, "build"), filepath.Join(root, "src", "index.ts"))
	assert.Equal(t, []string{"**/node_modules/**", "build/**", "build/index.ts"}, got)

	got = watchExcludes(root, nil, root, filepath.Join(root, "src", "index.ts"))
	assert.Equal(t, []string{"index.ts"}, got)
}
