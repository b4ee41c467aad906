package app

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nyein/internal/core/config"
	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
	"nyein/internal/data/history"
	"nyein/internal/engine/compiler"
	"nyein/internal/engine/emit"
	"nyein/internal/shared/util"
)

const OperationDts = "dts"

type DtsRequest struct {
	Entry  string
	OutDir string
	// TSConfig overrides [bundle] tsconfig.
	TSConfig string
}

type DtsResult struct {
	Bundle      *BundleResult
	Files       []string
	Diagnostics []ports.Diagnostic
	Duration    time.Duration
}

// Dts merges the entry into a staging directory and emits only its
// declaration file, banner first.
func (a *App) Dts(ctx context.Context, req DtsRequest) (*DtsResult, error) {
	defer a.releaseStaging()
	started := time.Now()
	res, err := a.dts(ctx, req)
	rec := history.BuildRecord{Operation: OperationDts, Entry: req.Entry, StartedAt: started, Duration: time.Since(started)}
	if res != nil {
		res.Duration = rec.Duration
		if res.Bundle != nil {
			rec.ID = res.Bundle.ID
			fillRecord(&rec, res.Bundle)
		}
		rec.Output = strings.Join(res.Files, ",")
	}
	a.record(ctx, rec, err)
	return res, err
}

func (a *App) dts(ctx context.Context, req DtsRequest) (*DtsResult, error) {
	if a.Compiler == nil {
		return nil, domain.New(domain.CodeNotSupported, "dts requires a compiler")
	}
	stage, cleanup, err := a.stagingDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	none := ""
	b, err := a.bundle(ctx, BundleRequest{Entry: req.Entry, OutDir: stage, NoTypeCheck: true, Banner: &none}, OperationDts)
	res := &DtsResult{Bundle: b}
	if err != nil {
		return res, err
	}

	tsconfig := a.Paths.TSConfig
	if req.TSConfig != "" {
		tsconfig = config.ResolveRelative(a.Paths.ProjectRoot, req.TSConfig)
	}
	out, err := a.Compiler.Compile(ctx, ports.CompileRequest{
		Files:               []string{b.OutFile},
		TSConfig:            tsconfig,
		Declaration:         true,
		EmitDeclarationOnly: true,
	})
	if err != nil {
		return res, err
	}
	res.Diagnostics = out.Diagnostics
	if err := compiler.DiagnosticsError(out.Diagnostics); err != nil {
		return res, domain.AddContext(err, domain.CtxEntry, req.Entry)
	}

	outDir := a.Paths.BundleOut
	if req.OutDir != "" {
		outDir = req.OutDir
	}
	banner := strings.TrimSpace(a.Config.Bundle.BannerText())
	for _, f := range out.Files {
		if !emit.IsDeclaration(f.Name) {
			continue
		}
		content := strings.TrimSpace(string(f.Contents)) + "\n"
		if banner != "" {
			content = banner + "\n" + content
		}
		path := filepath.Join(outDir, filepath.FromSlash(f.Name))
		if err := util.WriteStringWithDirs(path, content, 0o644); err != nil {
			return res, domain.AddContext(domain.Wrap(err, domain.CodeInternal, "write declaration file"), domain.CtxPath, path)
		}
		res.Files = append(res.Files, path)
	}
	if len(res.Files) == 0 {
		return res, domain.AddContext(domain.New(domain.CodeInternal, "compiler emitted no declaration file"), domain.CtxEntry, req.Entry)
	}
	sort.Strings(res.Files)
	return res, nil
}
