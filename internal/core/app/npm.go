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
	"nyein/internal/engine/emit"

	"golang.org/x/sync/errgroup"
)

const OperationNpm = "npm"

type NpmRequest struct {
	// OutDir and TSConfig override the [npm] settings.
	OutDir   string
	TSConfig string
}

type NpmEntryResult struct {
	Key    string
	Bundle *BundleResult
	Emit   *emit.Output
}

type NpmResult struct {
	Entries  []NpmEntryResult
	Update   ports.ManifestUpdate
	Duration time.Duration
}

// Npm builds every configured entry as an independent pipeline, emits each
// as CommonJS and ESM, and rewrites the manifest's entry points and export
// map once all entries succeeded.
func (a *App) Npm(ctx context.Context, req NpmRequest) (*NpmResult, error) {
	defer a.releaseStaging()
	started := time.Now()
	res, err := a.npm(ctx, req)
	rec := history.BuildRecord{Operation: OperationNpm, StartedAt: started, Duration: time.Since(started)}
	if main, ok := a.Config.Npm.MainEntry(); ok {
		rec.Entry = main.Path
	}
	if res != nil {
		res.Duration = rec.Duration
		var outputs []string
		for _, e := range res.Entries {
			if e.Bundle != nil && e.Bundle.Graph != nil {
				rec.Files += len(e.Bundle.Graph.Order)
				rec.Cycles += len(e.Bundle.Graph.Warnings.Cycles)
				rec.Skipped += len(e.Bundle.Graph.Warnings.Skipped)
			}
			if e.Emit != nil {
				outputs = append(outputs, e.Emit.Entry.Key)
			}
		}
		rec.Output = strings.Join(outputs, ",")
	}
	a.record(ctx, rec, err)
	return res, err
}

func (a *App) npm(ctx context.Context, req NpmRequest) (*NpmResult, error) {
	cfg := a.Config.Npm
	if _, ok := cfg.MainEntry(); !ok {
		return nil, domain.New(domain.CodeValidationError, `npm builds require an entry with key "main"`)
	}
	if a.Compiler == nil {
		return nil, domain.New(domain.CodeNotSupported, "npm builds require a compiler")
	}
	if a.Manifest == nil {
		return nil, domain.New(domain.CodeNotSupported, "npm builds require a package manifest")
	}
	pkgType, err := a.Manifest.ModuleType(ctx)
	if err != nil {
		return nil, err
	}

	outRoot := a.Paths.NpmOut
	if req.OutDir != "" {
		outRoot = config.ResolveRelative(a.Paths.ProjectRoot, strings.TrimPrefix(req.OutDir, "./"))
	}
	tsconfig := a.Paths.NpmTSConfig
	if req.TSConfig != "" {
		tsconfig = config.ResolveRelative(a.Paths.ProjectRoot, req.TSConfig)
	}

	for _, entry := range cfg.Entries {
		if err := cleanFormatDirs(entryOutDir(outRoot, entry.Key)); err != nil {
			return nil, err
		}
	}

	res := &NpmResult{Entries: make([]NpmEntryResult, len(cfg.Entries))}
	emitter := emit.NewEmitter(a.Compiler)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for i, entry := range cfg.Entries {
		res.Entries[i].Key = entry.Key
		g.Go(func() error {
			out, err := a.npmEntry(gctx, emitter, entry, outRoot, tsconfig, pkgType, &res.Entries[i])
			if err != nil {
				return domain.AddContext(err, domain.CtxEntry, entry.Key)
			}
			res.Entries[i].Emit = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	res.Update = manifestUpdate(res.Entries)
	if err := a.Manifest.Update(ctx, res.Update); err != nil {
		return res, err
	}
	slog.Info("package built", "entries", len(res.Entries), "out", outRoot)
	return res, nil
}

func (a *App) npmEntry(ctx context.Context, emitter *emit.Emitter, entry config.NpmEntry, outRoot, tsconfig, pkgType string, slot *NpmEntryResult) (*emit.Output, error) {
	stage, cleanup, err := a.stagingDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	b, err := a.bundle(ctx, BundleRequest{
		Entry:           entry.Path,
		OutDir:          stage,
		NoTypeCheck:     true,
		PreserveExports: a.Config.Npm.PreserveExports(),
	}, OperationNpm)
	slot.Bundle = b
	if err != nil {
		return nil, err
	}

	outDir := entryOutDir(outRoot, entry.Key)
	return emitter.Emit(ctx, emit.Request{
		Key:         entry.Key,
		Source:      b.OutFile,
		OutDir:      outDir,
		PublicDir:   a.publicDir(outDir),
		TSConfig:    tsconfig,
		PackageType: pkgType,
	})
}

// entryOutDir is the output root for "main", or a subdirectory named after
// the export subpath for every other key.
func entryOutDir(root, key string) string {
	if key == emit.MainKey {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(key, "./")))
}

// publicDir expresses dir relative to the manifest, as export paths are.
func (a *App) publicDir(dir string) string {
	rel, err := filepath.Rel(filepath.Dir(a.Paths.Manifest), dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	return filepath.ToSlash(rel)
}

// cleanFormatDirs removes the cjs/ and esm/ output of a previous build.
// Other files under dir are left alone.
func cleanFormatDirs(dir string) error {
	for _, f := range []emit.Format{emit.FormatCJS, emit.FormatESM} {
		if err := os.RemoveAll(filepath.Join(dir, string(f))); err != nil {
			return domain.AddContext(domain.Wrap(err, domain.CodeInternal, "clean output directory"), domain.CtxPath, dir)
		}
	}
	return nil
}

func manifestUpdate(entries []NpmEntryResult) ports.ManifestUpdate {
	var update ports.ManifestUpdate
	for _, e := range entries {
		if e.Emit == nil {
			continue
		}
		entry := e.Emit.Entry
		update.Exports = append(update.Exports, entry)
		if entry.Key == "." {
			update.Main = entry.Require
			update.Module = entry.Import
			update.Types = entry.Types
		}
	}
	return update
}
