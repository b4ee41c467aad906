package assemble

import (
	"strings"

	"nyein/internal/engine/symbols"
)

// Artifact is the merged single-file output.
type Artifact struct {
	Banner      string
	ImportBlock []string
	Bodies      []string
	// ExportClause re-exports the entry's public names; only set when
	// building a package.
	ExportClause string
}

// String renders banner, imports and bodies, each block separated by a
// newline, trimmed of surrounding whitespace.
func (a Artifact) String() string {
	bodies := a.Bodies
	if a.ExportClause != "" {
		bodies = append(append([]string(nil), bodies...), a.ExportClause)
	}
	out := a.Banner + "\n" + strings.Join(a.ImportBlock, "\n") + "\n" + strings.Join(bodies, "\n") + "\n"
	return strings.TrimSpace(out)
}

// Bytes is the file form of the artifact, newline terminated.
func (a Artifact) Bytes() []byte {
	return []byte(a.String() + "\n")
}

type Input struct {
	Banner string
	// Imports holds each file's hoisted import statements in processing
	// order.
	Imports [][]string
	// Bodies holds the final body of each file in processing order, entry
	// last.
	Bodies []string
	// Exports and Default are included only when PreserveExports is set.
	Exports         []symbols.ExportName
	Default         string
	PreserveExports bool
}

func Assemble(in Input) Artifact {
	art := Artifact{
		Banner:      strings.TrimSpace(in.Banner),
		ImportBlock: DedupImports(in.Imports...),
	}
	for _, body := range in.Bodies {
		if strings.TrimSpace(body) == "" {
			continue
		}
		art.Bodies = append(art.Bodies, body)
	}
	if in.PreserveExports {
		art.ExportClause = ExportClause(in.Exports, in.Default)
	}
	return art
}

// DedupImports concatenates import lists keeping the first occurrence of
// each statement. Statements compare equal when they differ only in
// whitespace.
func DedupImports(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, stmt := range list {
			key := strings.Join(strings.Fields(stmt), " ")
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(stmt))
		}
	}
	return out
}

// ExportClause renders `export { a, b as c };` and `export default d;`.
func ExportClause(names []symbols.ExportName, def string) string {
	var lines []string
	if len(names) > 0 {
		parts := make([]string, 0, len(names))
		for _, n := range names {
			if n.Local == n.Exported {
				parts = append(parts, n.Local)
				continue
			}
			parts = append(parts, n.Local+" as "+n.Exported)
		}
		lines = append(lines, "export { "+strings.Join(parts, ", ")+" };")
	}
	if def != "" {
		lines = append(lines, "export default "+def+";")
	}
	return strings.Join(lines, "\n")
}
