package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
	"nyein/internal/data/history"
	"nyein/internal/engine/assemble"
	"nyein/internal/engine/compiler"
	"nyein/internal/engine/format"
	"nyein/internal/engine/graph"
	"nyein/internal/engine/strip"
	"nyein/internal/engine/symbols"
	"nyein/internal/shared/util"
)

const OperationBundle = "bundle"

type BundleRequest struct {
	Entry string
	// OutDir overrides [bundle] out_dir.
	OutDir string
	// Check compares against the existing output instead of writing it.
	Check       bool
	NoTypeCheck bool
	// PreserveExports appends the entry's public names as an export clause.
	PreserveExports bool
	// Banner overrides the configured banner when non-nil.
	Banner *string
}

type BundleResult struct {
	ID          string
	Entry       string
	OutFile     string
	Artifact    assemble.Artifact
	Graph       *graph.Result
	Format      format.Result
	Symbols     *symbols.Result
	Notes       []string
	Diagnostics []ports.Diagnostic
	Stages      []Stage
	// UpToDate and Diff are only set in check mode.
	UpToDate bool
	Diff     []DiffLine
	Written  bool
	Duration time.Duration
}

// Bundle merges the graph rooted at req.Entry into one file.
func (a *App) Bundle(ctx context.Context, req BundleRequest) (*BundleResult, error) {
	defer a.releaseStaging()
	started := time.Now()
	res, err := a.bundle(ctx, req, OperationBundle)
	rec := history.BuildRecord{Operation: OperationBundle, Entry: req.Entry, StartedAt: started, Duration: time.Since(started)}
	if res != nil {
		res.Duration = rec.Duration
		rec.ID = res.ID
		fillRecord(&rec, res)
	}
	a.record(ctx, rec, err)
	return res, err
}

func fillRecord(rec *history.BuildRecord, res *BundleResult) {
	if res.Graph != nil {
		rec.Files = len(res.Graph.Order)
		rec.Cycles = len(res.Graph.Warnings.Cycles)
		rec.Skipped = len(res.Graph.Warnings.Skipped)
	}
	if res.Symbols != nil {
		rec.Collisions = len(res.Symbols.Collisions)
	}
	rec.Output = res.OutFile
}

func (a *App) bundle(ctx context.Context, req BundleRequest, operation string) (*BundleResult, error) {
	entry, err := a.entryPath(req.Entry)
	if err != nil {
		return nil, err
	}
	outDir := a.Paths.BundleOut
	if req.OutDir != "" {
		outDir = req.OutDir
	}
	res := &BundleResult{
		ID:      a.newID(),
		Entry:   req.Entry,
		OutFile: filepath.Join(outDir, filepath.Base(entry)),
	}

	art, err := a.merge(ctx, entry, req, operation, res)
	if err != nil {
		return res, err
	}
	res.Artifact = art
	return res, nil
}

// merge runs the pipeline from graph discovery to the written artifact.
func (a *App) merge(ctx context.Context, entry string, req BundleRequest, operation string, res *BundleResult) (assemble.Artifact, error) {
	p := newPipeline(ctx, operation, req.Entry)
	defer func() { res.Stages = p.Stages() }()
	ctx = p.Context()

	if err := p.advance(StageValidating); err != nil {
		return assemble.Artifact{}, err
	}
	builder, err := graph.NewBuilder(a.Parser, graph.Options{
		Root:          a.Paths.ProjectRoot,
		Skip:          a.Config.Graph.Skip,
		FailOnSkipped: a.Config.Graph.FailOnSkipped,
		FollowRequire: a.Config.Graph.FollowRequire,
	})
	if err != nil {
		return assemble.Artifact{}, p.Fail(err)
	}
	gres, err := builder.Build(ctx, entry)
	if err != nil {
		return assemble.Artifact{}, p.Fail(err)
	}
	res.Graph = gres
	logWarnings(req.Entry, gres.Warnings)

	fres, err := format.NewValidator(a.Config.Bundle.IsStrict()).Validate(gres)
	res.Format = fres
	if err != nil {
		return assemble.Artifact{}, p.Fail(err)
	}
	for _, v := range fres.Violations {
		slog.Warn("format check relaxed", "entry", req.Entry, "violation", v.Message())
	}

	if err := p.advance(StageStripping); err != nil {
		return assemble.Artifact{}, err
	}
	modules, err := strip.NewStripper(a.Parser, a.cache).StripAll(ctx, gres)
	if err != nil {
		return assemble.Artifact{}, p.Fail(err)
	}
	for _, m := range modules {
		for _, note := range m.Notes {
			res.Notes = append(res.Notes, m.Node.RelativePath+": "+note)
		}
	}

	if err := p.advance(StageResolving); err != nil {
		return assemble.Artifact{}, err
	}
	sres, err := symbols.NewResolver(a.Parser, a.Config.Bundle.RenameDuplicates).Resolve(ctx, modules)
	res.Symbols = sres
	if err != nil {
		return assemble.Artifact{}, p.Fail(err)
	}
	res.Notes = append(res.Notes, sres.Notes...)

	if err := p.advance(StageAssembling); err != nil {
		return assemble.Artifact{}, err
	}
	banner := a.Config.Bundle.BannerText()
	if req.Banner != nil {
		banner = *req.Banner
	}
	in := assemble.Input{
		Banner:          banner,
		Bodies:          sres.Bodies,
		PreserveExports: req.PreserveExports,
	}
	for _, m := range modules {
		in.Imports = append(in.Imports, m.HoistedImports)
	}
	if req.PreserveExports {
		in.Exports, in.Default = sres.EntryExports(gres.Graph.Entry)
	}
	art := assemble.Assemble(in)

	if err := p.advance(StageEmitting); err != nil {
		return art, err
	}
	if err := a.typeCheck(ctx, req, fres.Family, filepath.Base(entry), art, res); err != nil {
		return art, p.Fail(err)
	}
	if req.Check {
		if err := a.compareOutput(res, art); err != nil {
			return art, p.Fail(err)
		}
	} else {
		if err := util.WriteFileWithDirs(res.OutFile, art.Bytes(), 0o644); err != nil {
			return art, p.Fail(domain.AddContext(domain.Wrap(err, domain.CodeInternal, "write merged output"), domain.CtxPath, res.OutFile))
		}
		res.Written = true
	}
	if err := p.advance(StageDone); err != nil {
		return art, err
	}
	slog.Info("merged", "entry", req.Entry, "files", len(gres.Order), "output", res.OutFile)
	return art, nil
}

// typeCheck compiles the merged TypeScript artifact without emitting. Any
// error diagnostic fails the build.
func (a *App) typeCheck(ctx context.Context, req BundleRequest, family graph.ExtensionCategory, name string, art assemble.Artifact, res *BundleResult) error {
	if req.NoTypeCheck || !a.Config.Bundle.TypeCheckEnabled() || family != graph.CategoryTypeScript {
		return nil
	}
	if a.Compiler == nil {
		slog.Debug("type check skipped: no compiler configured", "entry", req.Entry)
		return nil
	}
	dir, cleanup, err := a.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()

	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, art.Bytes(), 0o644); err != nil {
		return domain.Wrap(err, domain.CodeInternal, "stage merged output")
	}
	out, err := a.Compiler.Compile(ctx, ports.CompileRequest{
		Files:    []string{file},
		TSConfig: a.Paths.TSConfig,
		NoEmit:   true,
		Strict:   true,
	})
	if err != nil {
		return err
	}
	res.Diagnostics = out.Diagnostics
	return compiler.DiagnosticsError(out.Diagnostics)
}

func (a *App) compareOutput(res *BundleResult, art assemble.Artifact) error {
	current, err := os.ReadFile(res.OutFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.AddContext(domain.Wrap(err, domain.CodeInternal, "read existing output"), domain.CtxPath, res.OutFile)
	}
	want := string(art.Bytes())
	res.UpToDate = err == nil && string(current) == want
	if !res.UpToDate {
		res.Diff = LineDiff(string(current), want)
	}
	return nil
}

func logWarnings(entry string, w graph.Warnings) {
	for _, c := range w.Cycles {
		slog.Warn("import cycle", "entry", entry, "cycle", c.String())
	}
	for _, s := range w.Skipped {
		slog.Warn("skipped import", "entry", entry, "file", s.Importer, "specifier", s.Specifier, "reason", s.Reason)
	}
}
