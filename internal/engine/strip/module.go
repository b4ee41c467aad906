package strip

import (
	"path/filepath"
	"strings"

	"nyein/internal/engine/graph"
	"nyein/internal/shared/util"
)

// Imported names with special meaning in an ImportBinding.
const (
	ImportDefault   = "default"
	ImportNamespace = "*"
)

// ExportBinding maps an exported name to the local binding it exposes.
type ExportBinding struct {
	Local    string
	Exported string
}

// ReExport is `export { Imported as Exported } from "Specifier"`.
// Imported is ImportNamespace for `export * as Exported from`.
type ReExport struct {
	Exported  string
	Imported  string
	Specifier string
	Target    string
}

// StarExport is `export * from "Specifier"`.
type StarExport struct {
	Specifier string
	Target    string
}

// ImportBinding is a local name bound by a removed relative import. Target
// is the resolved file, empty when the specifier did not resolve.
type ImportBinding struct {
	Local     string
	Imported  string
	Specifier string
	Target    string
	// Require marks bindings taken from require(); a require of a module
	// that assigns module.exports binds its default.
	Require bool
}

// Module is one source file with its module boundary removed.
type Module struct {
	Node           *graph.SourceNode
	Body           string
	HoistedImports []string
	Exports        []ExportBinding
	ReExports      []ReExport
	StarExports    []StarExport
	ImportBindings []ImportBinding
	// DefaultName is the local binding behind the default export, if any.
	DefaultName string
	// Notes describe constructs kept as written because they cannot be
	// merged faithfully.
	Notes []string
	// LineOrigins holds the 0-indexed source row of each Body line.
	LineOrigins []int
}

func (m *Module) Path() string {
	return m.Node.Path
}

// SourceLine maps a 0-indexed Body row to its 1-indexed line in the file.
func (m *Module) SourceLine(row int) int {
	if row >= 0 && row < len(m.LineOrigins) {
		return m.LineOrigins[row] + 1
	}
	return row + 1
}

// ExportedLocal returns the local binding behind an exported name declared
// in this module.
func (m *Module) ExportedLocal(name string) (string, bool) {
	if name == ImportDefault && m.DefaultName != "" {
		return m.DefaultName, true
	}
	for _, e := range m.Exports {
		if e.Exported == name {
			return e.Local, true
		}
	}
	return "", false
}

// SyntheticDefaultName derives the binding given to an anonymous default
// export: __default_<base>_<hash6>, hashed over the project-relative path so
// two index files in different directories never clash.
func SyntheticDefaultName(node *graph.SourceNode) string {
	base := filepath.Base(node.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	rel := node.RelativePath
	if rel == "" {
		rel = node.Path
	}
	return "__default_" + sanitizeIdentifier(base) + "_" + util.ShortHash(rel, 6)
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "module"
	}
	return b.String()
}
