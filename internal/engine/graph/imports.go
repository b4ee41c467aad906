package graph

import (
	"sort"

	"nyein/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type importRef struct {
	Specifier string
	Dynamic   bool
	at        uint
}

// collectImports lists module specifiers in source order: static imports,
// import-equals, re-exports and, when followRequire is set, literal require
// calls. Dynamic import() calls are reported so relative ones can be skipped.
func collectImports(tree *parser.Tree, followRequire bool) []importRef {
	src := tree.Source
	var refs []importRef

	for _, stmt := range tree.TopLevel() {
		switch stmt.Kind() {
		case "import_statement":
			if spec := parser.ImportSource(stmt, src); spec != "" {
				refs = append(refs, importRef{Specifier: spec, at: stmt.StartByte()})
			}
		case "export_statement":
			if source := stmt.ChildByFieldName("source"); source != nil {
				refs = append(refs, importRef{Specifier: parser.StringValue(source, src), at: stmt.StartByte()})
			}
		}
	}

	parser.Walk(tree.Root(), func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		if followRequire && parser.IsRequireCall(n, src) {
			refs = append(refs, importRef{Specifier: parser.RequireSpecifier(n, src), at: n.StartByte()})
			return true
		}
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Kind() == "import" {
			if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
				if first := args.NamedChild(0); first != nil && first.Kind() == "string" {
					refs = append(refs, importRef{Specifier: parser.StringValue(first, src), Dynamic: true, at: n.StartByte()})
				}
			}
		}
		return true
	})

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].at < refs[j].at })
	return refs
}
