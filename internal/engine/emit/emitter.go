package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
	"nyein/internal/engine/compiler"
	"nyein/internal/shared/util"

	"golang.org/x/sync/errgroup"
)

// Package module types as written in package.json "type".
const (
	TypeCommonJS = "commonjs"
	TypeModule   = "module"
)

// MainKey is the configured key whose export entry is ".".
const MainKey = "main"

// Format names one of the two output passes and its subdirectory.
type Format string

const (
	FormatCJS Format = "cjs"
	FormatESM Format = "esm"
)

func (f Format) module() ports.ModuleKind {
	if f == FormatESM {
		return ports.ModuleES2020
	}
	return ports.ModuleCommonJS
}

func (f Format) packageType() string {
	if f == FormatESM {
		return TypeModule
	}
	return TypeCommonJS
}

type Request struct {
	// Key is "main" or an export subpath such as "./utils".
	Key string
	// Source is the merged artifact to compile.
	Source string
	// OutDir receives the cjs/ and esm/ subdirectories.
	OutDir string
	// PublicDir is OutDir as seen from the manifest, slash separated and
	// without a leading "./".
	PublicDir   string
	TSConfig    string
	PackageType string
}

// PassOutput lists what one pass wrote, relative to its format directory.
type PassOutput struct {
	Format      Format
	Dir         string
	Files       []string
	Impl        string
	Declaration string
	Diagnostics []ports.Diagnostic
}

type Output struct {
	Key   string
	CJS   PassOutput
	ESM   PassOutput
	Entry ports.ExportEntry
}

// Emitter re-emits a merged artifact as CommonJS and ESM.
type Emitter struct {
	compiler ports.Compiler
}

func NewEmitter(c ports.Compiler) *Emitter {
	return &Emitter{compiler: c}
}

// Emit runs both passes concurrently and derives the export entry once both
// have finished. Error diagnostics from either pass fail the emit.
func (e *Emitter) Emit(ctx context.Context, req Request) (*Output, error) {
	if e.compiler == nil {
		return nil, domain.New(domain.CodeInternal, "emitter has no compiler")
	}
	out := &Output{Key: req.Key}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pass, err := e.pass(gctx, req, FormatCJS)
		out.CJS = pass
		return err
	})
	g.Go(func() error {
		pass, err := e.pass(gctx, req, FormatESM)
		out.ESM = pass
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.AddContext(err, domain.CtxEntry, req.Key)
	}

	entry, err := ExportEntryFor(req.Key, req.PublicDir, out.CJS, out.ESM)
	if err != nil {
		return nil, err
	}
	out.Entry = entry
	return out, nil
}

func (e *Emitter) pass(ctx context.Context, req Request, format Format) (PassOutput, error) {
	pass := PassOutput{Format: format, Dir: filepath.Join(req.OutDir, string(format))}
	res, err := e.compiler.Compile(ctx, ports.CompileRequest{
		Files:       []string{req.Source},
		TSConfig:    req.TSConfig,
		Module:      format.module(),
		Declaration: format == FormatESM,
	})
	if err != nil {
		return pass, domain.AddContext(err, domain.CtxStage, "emit "+string(format))
	}
	pass.Diagnostics = res.Diagnostics
	if err := compiler.DiagnosticsError(res.Diagnostics); err != nil {
		return pass, domain.AddContext(err, domain.CtxStage, "emit "+string(format))
	}

	stem := sourceStem(req.Source)
	for _, f := range res.Files {
		name := RenameForPackage(f.Name, format, req.PackageType)
		if err := util.WriteFileWithDirs(filepath.Join(pass.Dir, filepath.FromSlash(name)), f.Contents, 0o644); err != nil {
			return pass, domain.Wrap(err, domain.CodeInternal, "write emitted file")
		}
		pass.Files = append(pass.Files, name)
		if outputStem(name) != stem {
			continue
		}
		switch {
		case IsDeclaration(name):
			pass.Declaration = name
		case isScript(name):
			pass.Impl = name
		}
	}
	sort.Strings(pass.Files)

	if err := writeStub(pass.Dir, format.packageType()); err != nil {
		return pass, err
	}
	slog.Debug("emit pass complete", "entry", req.Key, "format", format, "files", len(pass.Files))
	return pass, nil
}

// writeStub marks a format directory with its module type so Node loads
// .js files in it correctly.
func writeStub(dir, moduleType string) error {
	data, err := json.MarshalIndent(map[string]string{"type": moduleType}, "", "  ")
	if err != nil {
		return domain.Wrap(err, domain.CodeInternal, "render package stub")
	}
	if err := util.WriteFileWithDirs(filepath.Join(dir, "package.json"), append(data, '\n'), 0o644); err != nil {
		return domain.Wrap(err, domain.CodeInternal, "write package stub")
	}
	return nil
}

var declarationSuffixes = []string{".d.ts", ".d.mts", ".d.cts"}

func IsDeclaration(name string) bool {
	for _, suffix := range declarationSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func isScript(name string) bool {
	switch path.Ext(name) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}

// RenameForPackage gives pass outputs an extension Node resolves correctly
// regardless of the enclosing package type: ESM output in a commonjs package
// becomes .mjs/.d.mts and CJS output in a module package becomes .cjs/.d.cts.
// Source maps follow the file they map.
func RenameForPackage(name string, format Format, packageType string) string {
	var js, dts string
	switch {
	case format == FormatESM && packageType != TypeModule:
		js, dts = ".mjs", ".d.mts"
	case format == FormatCJS && packageType == TypeModule:
		js, dts = ".cjs", ".d.cts"
	default:
		return name
	}
	for _, pair := range [][2]string{
		{".d.ts.map", dts + ".map"},
		{".d.ts", dts},
		{".js.map", js + ".map"},
		{".js", js},
	} {
		if strings.HasSuffix(name, pair[0]) {
			return strings.TrimSuffix(name, pair[0]) + pair[1]
		}
	}
	return name
}

// ExportEntryFor derives the package export-map entry for one configured key.
func ExportEntryFor(key, publicDir string, cjs, esm PassOutput) (ports.ExportEntry, error) {
	if cjs.Impl == "" || esm.Impl == "" {
		return ports.ExportEntry{}, domain.Newf(domain.CodeInternal, "compiler produced no output for %q", key)
	}
	if esm.Declaration == "" {
		return ports.ExportEntry{}, domain.Newf(domain.CodeInternal, "compiler produced no declarations for %q", key)
	}
	entryKey := key
	if key == MainKey {
		entryKey = "."
	}
	base := "./" + strings.Trim(strings.TrimPrefix(filepath.ToSlash(publicDir), "./"), "/")
	if base == "./" {
		base = "."
	}
	return ports.ExportEntry{
		Key:     entryKey,
		Types:   fmt.Sprintf("%s/%s/%s", base, FormatESM, esm.Declaration),
		Import:  fmt.Sprintf("%s/%s/%s", base, FormatESM, esm.Impl),
		Require: fmt.Sprintf("%s/%s/%s", base, FormatCJS, cjs.Impl),
	}, nil
}

func sourceStem(source string) string {
	return outputStem(filepath.Base(source))
}

// outputStem strips declaration, map and script extensions: "index.d.mts"
// and "index.cjs" both give "index".
func outputStem(name string) string {
	name = path.Base(filepath.ToSlash(name))
	name = strings.TrimSuffix(name, ".map")
	for _, suffix := range declarationSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
