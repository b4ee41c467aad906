package strip

import (
	"nyein/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func (p *pass) exportStatement(stmt *sitter.Node) {
	keyword := parser.ChildOfKind(stmt, "export")
	if keyword == nil {
		return
	}
	isDefault := parser.ChildOfKind(stmt, "default") != nil
	source := stmt.ChildByFieldName("source")

	// Decorators sit before the keyword and stay with the declaration.
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		p.edits = append(p.edits, parser.Edit{Start: keyword.StartByte(), End: decl.StartByte()})
		names := parser.DeclaredNames(decl, p.src)
		if isDefault {
			if len(names) > 0 {
				p.mod.DefaultName = names[0].Name
			}
			return
		}
		for _, d := range names {
			p.mod.Exports = append(p.mod.Exports, ExportBinding{Local: d.Name, Exported: d.Name})
		}
		return
	}

	if value := defaultValue(stmt); value != nil {
		p.defaultExport(stmt, keyword, value)
		return
	}

	if clause := parser.ChildOfKind(stmt, "export_clause"); clause != nil {
		p.remove(stmt)
		p.exportClause(clause, source)
		return
	}

	if ns := parser.ChildOfKind(stmt, "namespace_export"); ns != nil {
		p.remove(stmt)
		spec := parser.StringValue(source, p.src)
		p.mod.ReExports = append(p.mod.ReExports, ReExport{
			Exported:  moduleExportName(ns.NamedChild(ns.NamedChildCount()-1), p.src),
			Imported:  ImportNamespace,
			Specifier: spec,
			Target:    p.targetOf(spec),
		})
		return
	}

	if source != nil && parser.ChildOfKind(stmt, "*") != nil {
		p.remove(stmt)
		spec := parser.StringValue(source, p.src)
		p.mod.StarExports = append(p.mod.StarExports, StarExport{Specifier: spec, Target: p.targetOf(spec)})
		return
	}

	// `export as namespace X` only matters to global script consumers.
	if parser.ChildOfKind(stmt, "namespace") != nil {
		p.remove(stmt)
		return
	}

	// Anything else, such as `export import A = B.C`, keeps its statement.
	p.edits = append(p.edits, parser.Edit{Start: keyword.StartByte(), End: skipBlanks(p.src, keyword.EndByte())})
	p.note(stmt, "kept export statement body without its export keyword")
}

// defaultValue returns the expression of `export default <expr>` or of the
// TypeScript `export = <expr>` form.
func defaultValue(stmt *sitter.Node) *sitter.Node {
	if value := stmt.ChildByFieldName("value"); value != nil {
		return value
	}
	afterAssign := false
	for i := uint(0); i < stmt.ChildCount(); i++ {
		child := stmt.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "=" {
			afterAssign = true
			continue
		}
		if afterAssign && child.IsNamed() && child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func (p *pass) defaultExport(stmt, keyword, value *sitter.Node) {
	switch value.Kind() {
	case "identifier":
		p.remove(stmt)
		p.mod.DefaultName = p.text(value)
		return
	case "function_expression", "function", "generator_function", "class":
		p.edits = append(p.edits, parser.Edit{Start: keyword.StartByte(), End: value.StartByte()})
		if name := value.ChildByFieldName("name"); name != nil {
			p.mod.DefaultName = p.text(name)
			return
		}
		synthetic := SyntheticDefaultName(p.node)
		p.mod.DefaultName = synthetic
		if at := nameSlot(value); at != nil {
			p.edits = append(p.edits, parser.Edit{Start: at.EndByte(), End: at.EndByte(), Text: " " + synthetic})
		}
		return
	}

	synthetic := SyntheticDefaultName(p.node)
	p.mod.DefaultName = synthetic
	p.edits = append(p.edits, parser.Edit{
		Start: keyword.StartByte(),
		End:   stmt.EndByte(),
		Text:  "const " + synthetic + " = " + p.text(value) + ";",
	})
}

// nameSlot returns the token a declaration name follows: the `*` of a
// generator, else the function or class keyword.
func nameSlot(value *sitter.Node) *sitter.Node {
	if star := parser.ChildOfKind(value, "*"); star != nil {
		return star
	}
	return parser.ChildOfKind(value, "function", "class")
}

func (p *pass) exportClause(clause, source *sitter.Node) {
	spec := ""
	target := ""
	if source != nil {
		spec = parser.StringValue(source, p.src)
		target = p.targetOf(spec)
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		es := clause.NamedChild(i)
		if es == nil || es.Kind() != "export_specifier" {
			continue
		}
		name := moduleExportName(es.ChildByFieldName("name"), p.src)
		exported := name
		if alias := es.ChildByFieldName("alias"); alias != nil {
			exported = moduleExportName(alias, p.src)
		}
		if source != nil {
			p.mod.ReExports = append(p.mod.ReExports, ReExport{Exported: exported, Imported: name, Specifier: spec, Target: target})
			continue
		}
		if exported == ImportDefault {
			p.mod.DefaultName = name
			continue
		}
		p.mod.Exports = append(p.mod.Exports, ExportBinding{Local: name, Exported: exported})
	}
}

func skipBlanks(src []byte, at uint) uint {
	for at < uint(len(src)) && (src[at] == ' ' || src[at] == '\t') {
		at++
	}
	return at
}
