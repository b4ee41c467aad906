package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nyein/internal/data/history"
	"nyein/internal/data/manifest"

	"github.com/stretchr/testify/assert"
)

type brokenHistory struct{}

func (brokenHistory) Record(context.Context, history.BuildRecord) error { return nil }
func (brokenHistory) Recent(context.Context, int) ([]history.BuildRecord, error) {
	return nil, errors.New("database is locked")
}

func TestHealth_Up(t *testing.T) {
	root := writeProject(t, map[string]string{"package.json": `{}`})
	a := newTestApp(t, root, nil,
		WithCompiler(&fakeCompiler{}),
		WithManifest(manifest.NewStore(filepath.Join(root, "package.json"))),
		WithHistory(&memoryHistory{}))

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["compiler"])
	assert.Equal(t, "ok", status.Components["manifest"])
	assert.Equal(t, "ok", status.Components["history"])
	assert.Equal(t, "0 entries", status.Components["strip_cache"])
	assert.Equal(t, "ok (6 extensions)", status.Components["parser"])
}

func TestHealth_Degraded(t *testing.T) {
	root := t.TempDir()
	a := newTestApp(t, root, nil,
		WithManifest(manifest.NewStore(filepath.Join(root, "package.json"))),
		WithHistory(brokenHistory{}))

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Components["compiler"], "missing")
	assert.Contains(t, status.Components["manifest"], "unreadable")
	assert.Equal(t, "error: database is locked", status.Components["history"])
}

func TestHealth_HistoryDisabled(t *testing.T) {
	a := newTestApp(t, t.TempDir(), nil, WithCompiler(&fakeCompiler{}))
	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "disabled", status.Components["history"])
	assert.Equal(t, "not configured", status.Components["manifest"])
}
