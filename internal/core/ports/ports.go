package ports

import (
	"context"

	"nyein/internal/data/history"
)

// ModuleKind is the module system a compiler pass targets.
type ModuleKind string

const (
	ModuleCommonJS ModuleKind = "commonjs"
	ModuleES2020   ModuleKind = "es2020"
)

// CompileRequest describes one invocation of the external compiler.
type CompileRequest struct {
	Files []string
	// TSConfig is the user's tsconfig; the adapter extends it. Empty means
	// compiler defaults.
	TSConfig            string
	Module              ModuleKind
	Declaration         bool
	EmitDeclarationOnly bool
	// NoEmit runs type checking only.
	NoEmit bool
	Strict bool
}

// EmittedFile is one output captured from the compiler's write sink. Name is
// relative to the pass output root, slash separated.
type EmittedFile struct {
	Name     string
	Contents []byte
}

// Diagnostic is a compiler error or warning with its source position.
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Code     string
	Category string
	Message  string
}

type CompileResult struct {
	Files       []EmittedFile
	Diagnostics []Diagnostic
}

// Compiler abstracts the type checker and emitter. Implementations must not
// write outside their own scratch space; callers persist EmittedFile values.
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
}

// ExportEntry is one package.json export-map entry.
type ExportEntry struct {
	Key     string
	Types   string
	Import  string
	Require string
}

// ManifestUpdate carries the fields nyein owns in a package manifest.
type ManifestUpdate struct {
	Main    string
	Module  string
	Types   string
	Exports []ExportEntry
}

// ManifestStore reads and rewrites a package manifest, preserving every field
// it does not own.
type ManifestStore interface {
	ModuleType(ctx context.Context) (string, error)
	Update(ctx context.Context, update ManifestUpdate) error
}

// HistoryRecorder persists build outcomes for `nyein history`.
type HistoryRecorder interface {
	Record(ctx context.Context, rec history.BuildRecord) error
	Recent(ctx context.Context, limit int) ([]history.BuildRecord, error)
}
