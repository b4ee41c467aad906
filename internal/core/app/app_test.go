package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"nyein/internal/core/config"
	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
	"nyein/internal/data/history"
	"nyein/internal/data/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompiler struct {
	mu       sync.Mutex
	requests []ports.CompileRequest
	check    []ports.Diagnostic
}

func (f *fakeCompiler) Compile(_ context.Context, req ports.CompileRequest) (ports.CompileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.NoEmit {
		return ports.CompileResult{Diagnostics: f.check}, nil
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

type memoryHistory struct {
	mu      sync.Mutex
	records []history.BuildRecord
}

func (m *memoryHistory) Record(_ context.Context, rec history.BuildRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryHistory) Recent(_ context.Context, limit int) ([]history.BuildRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.BuildRecord(nil), m.records...), nil
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestApp(t *testing.T, root string, mutate func(*config.Config), opts ...Option) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(cfg, root, opts...)
	require.NoError(t, err)
	return a
}

func TestBundle_WritesMergedOutput(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/a.ts":     "import pad from 'left-pad';\nexport const a = pad('x', 2);\n",
		"src/index.ts": "import pad from 'left-pad';\nimport { a } from './a';\nconsole.log(a, pad);\n",
	})
	hist := &memoryHistory{}
	a := newTestApp(t, root, nil, WithHistory(hist))

	res, err := a.Bundle(context.Background(), BundleRequest{Entry: "src/index.ts"})
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, filepath.Join(root, "dist", "index.ts"), res.OutFile)

	data, err := os.ReadFile(res.OutFile)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, config.DefaultBanner+"\n"))
	assert.Equal(t, 1, strings.Count(out, "import pad from 'left-pad';"))
	assert.NotContains(t, out, "./a")
	assert.Less(t, strings.Index(out, "const a = pad"), strings.Index(out, "console.log(a, pad);"))
	assert.True(t, strings.HasSuffix(out, "console.log(a, pad);\n"))

	assert.Equal(t, []Stage{StagePending, StageValidating, StageStripping, StageResolving, StageAssembling, StageEmitting, StageDone}, res.Stages)
	require.Len(t, hist.records, 1)
	assert.Equal(t, history.OutcomeSuccess, hist.records[0].Outcome)
	assert.Equal(t, 2, hist.records[0].Files)

	assert.NoDirExists(t, filepath.Join(root, "._nyein"))
}

func TestBundle_StrictCollisionWritesNothing(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.ts":     "export const x = 1;\n",
		"index.ts": "import { x as y } from './a';\nconst x = 2;\nconsole.log(x, y);\n",
	})
	hist := &memoryHistory{}
	a := newTestApp(t, root, nil, WithHistory(hist))

	res, err := a.Bundle(context.Background(), BundleRequest{Entry: "index.ts"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeCollision))
	assert.Contains(t, err.Error(), "stage=resolving")
	assert.Equal(t, StageFailed, res.Stages[len(res.Stages)-1])
	assert.NoFileExists(t, filepath.Join(root, "dist", "index.ts"))

	require.NotNil(t, res.Symbols)
	require.Len(t, res.Symbols.Collisions, 1)
	assert.Equal(t, []int{1, 2}, res.Symbols.Collisions[0].Lines)

	require.Len(t, hist.records, 1)
	assert.Equal(t, history.OutcomeFailed, hist.records[0].Outcome)
	assert.Equal(t, string(domain.CodeCollision), hist.records[0].ErrorCode)
}

func TestBundle_RenameDuplicates(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.ts":     "export const x = 1;\n",
		"index.ts": "import { x as y } from './a';\nconst x = 2;\nconsole.log(x, y);\n",
	})
	a := newTestApp(t, root, func(c *config.Config) { c.Bundle.RenameDuplicates = true })

	res, err := a.Bundle(context.Background(), BundleRequest{Entry: "index.ts"})
	require.NoError(t, err)
	out := res.Artifact.String()
	assert.Contains(t, out, "const $1x = 1;")
	assert.Contains(t, out, "const $2x = 2;")
	assert.Contains(t, out, "console.log($2x, $1x);")
}

func TestBundle_RebuildLinksDependencyThatAppeared(t *testing.T) {
	root := writeProject(t, map[string]string{
		"c.ts":     "export const x = 0;\n",
		"index.ts": "import './c';\nimport { x } from './b';\nconsole.log(x);\n",
	})
	a := newTestApp(t, root, func(c *config.Config) { c.Bundle.RenameDuplicates = true })
	ctx := context.Background()

	_, err := a.Bundle(ctx, BundleRequest{Entry: "index.ts"})
	require.NoError(t, err)
	require.Positive(t, a.CacheLen())

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.ts"), []byte("export const x = 1;\n"), 0o644))
	res, err := a.Bundle(ctx, BundleRequest{Entry: "index.ts"})
	require.NoError(t, err)
	out := res.Artifact.String()
	assert.Contains(t, out, "const $1x = 0;")
	assert.Contains(t, out, "const $2x = 1;")
	assert.Contains(t, out, "console.log($2x);")
	for _, note := range res.Notes {
		assert.NotContains(t, note, "could not be linked")
	}
}

func TestBundle_MixedFamiliesFailBeforeAssembly(t *testing.T) {
	root := writeProject(t, map[string]string{
		"util.js":  "export const u = 1;\n",
		"index.ts": "import { u } from './util.js';\nconsole.log(u);\n",
	})
	a := newTestApp(t, root, nil)

	res, err := a.Bundle(context.Background(), BundleRequest{Entry: "index.ts"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeFormat))
	assert.NotContains(t, res.Stages, StageAssembling)
}

func TestBundle_CheckMode(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.ts": "export const a = 1;\n",
	})
	a := newTestApp(t, root, nil)
	ctx := context.Background()

	res, err := a.Bundle(ctx, BundleRequest{Entry: "index.ts", Check: true})
	require.NoError(t, err)
	assert.False(t, res.UpToDate)
	assert.False(t, res.Written)
	assert.NoFileExists(t, res.OutFile)

	_, err = a.Bundle(ctx, BundleRequest{Entry: "index.ts"})
	require.NoError(t, err)
	res, err = a.Bundle(ctx, BundleRequest{Entry: "index.ts", Check: true})
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Empty(t, res.Diff)

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.ts"), []byte("export const a = 2;\n"), 0o644))
	res, err = a.Bundle(ctx, BundleRequest{Entry: "index.ts", Check: true})
	require.NoError(t, err)
	assert.False(t, res.UpToDate)
	added, removed := DiffStats(res.Diff)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
}

func TestBundle_TypeCheckDiagnosticsFail(t *testing.T) {
	root := writeProject(t, map[string]string{"index.ts": "export const a: number = 'x';\n"})
	fc := &fakeCompiler{check: []ports.Diagnostic{{File: "index.ts", Line: 1, Column: 14, Code: "TS2322", Category: "error", Message: "Type 'string' is not assignable to type 'number'."}}}
	a := newTestApp(t, root, nil, WithCompiler(fc))

	res, err := a.Bundle(context.Background(), BundleRequest{Entry: "index.ts"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeDiagnostic))
	assert.Len(t, res.Diagnostics, 1)
	assert.NoFileExists(t, res.OutFile)
	require.Len(t, fc.requests, 1)
	assert.True(t, fc.requests[0].NoEmit)
	assert.True(t, fc.requests[0].Strict)

	_, err = a.Bundle(context.Background(), BundleRequest{Entry: "index.ts", NoTypeCheck: true})
	require.NoError(t, err)
}

func TestDts_PrependsBanner(t *testing.T) {
	root := writeProject(t, map[string]string{"index.ts": "export const a = 1;\n"})
	a := newTestApp(t, root, nil, WithCompiler(&fakeCompiler{}))

	res, err := a.Dts(context.Background(), DtsRequest{Entry: "index.ts", OutDir: filepath.Join(root, "types")})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(root, "types", "index.d.ts")}, res.Files)

	data, err := os.ReadFile(res.Files[0])
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBanner+"\nexport declare const a: number;\n", string(data))
	assert.NoDirExists(t, filepath.Join(root, "._nyein"))
}

func TestNpm_BuildsEntriesAndRewritesManifest(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json":    `{"name": "pkg", "version": "1.0.0"}`,
		"src/index.ts":    "export const a = 1;\n",
		"src/utils.ts":    "export function u() { return 1; }\n",
		"dist/esm/old.js": "stale",
	})
	fc := &fakeCompiler{}
	a := newTestApp(t, root, func(c *config.Config) {
		c.Npm.Entries = []config.NpmEntry{{Key: "main", Path: "src/index.ts"}, {Key: "./utils", Path: "src/utils.ts"}}
	}, WithCompiler(fc), WithManifest(manifest.NewStore(filepath.Join(root, "package.json"))))

	res, err := a.Npm(context.Background(), NpmRequest{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	assert.Equal(t, ports.ExportEntry{
		Key:     ".",
		Types:   "./dist/esm/index.d.mts",
		Import:  "./dist/esm/index.mjs",
		Require: "./dist/cjs/index.js",
	}, res.Entries[0].Emit.Entry)
	assert.Equal(t, "./utils", res.Entries[1].Emit.Entry.Key)
	assert.Equal(t, "./dist/utils/cjs/utils.js", res.Entries[1].Emit.Entry.Require)

	assert.NoFileExists(t, filepath.Join(root, "dist", "esm", "old.js"))
	assert.FileExists(t, filepath.Join(root, "dist", "esm", "index.mjs"))
	assert.FileExists(t, filepath.Join(root, "dist", "utils", "cjs", "utils.js"))
	assert.NoDirExists(t, filepath.Join(root, "._nyein"))

	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	pkg := string(data)
	assert.Contains(t, pkg, `"main": "./dist/cjs/index.js"`)
	assert.Contains(t, pkg, `"./utils": {`)
	assert.Less(t, strings.Index(pkg, `"name"`), strings.Index(pkg, `"exports"`))
	assert.Len(t, fc.requests, 4)
}

func TestNpm_RequiresMainEntry(t *testing.T) {
	root := writeProject(t, map[string]string{"package.json": `{}`})
	a := newTestApp(t, root, func(c *config.Config) {
		c.Npm.Entries = []config.NpmEntry{{Key: "./utils", Path: "utils.ts"}}
	}, WithCompiler(&fakeCompiler{}), WithManifest(manifest.NewStore(filepath.Join(root, "package.json"))))

	_, err := a.Npm(context.Background(), NpmRequest{})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidationError))
}

func TestRecentBuilds_DisabledHistory(t *testing.T) {
	a := newTestApp(t, t.TempDir(), nil)
	_, err := a.RecentBuilds(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeNotSupported))
}
