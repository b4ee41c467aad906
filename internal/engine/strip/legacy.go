package strip

import (
	"nyein/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// legacyAssignment rewrites top-level CommonJS export assignments into plain
// bindings and drops side-effect requires of files that are being inlined.
func (p *pass) legacyAssignment(stmt *sitter.Node) {
	expr := stmt.NamedChild(0)
	if expr == nil {
		return
	}
	if parser.IsRequireCall(expr, p.src) {
		if parser.IsRelativeSpecifier(parser.RequireSpecifier(expr, p.src)) {
			p.remove(stmt)
		}
		return
	}
	if expr.Kind() != "assignment_expression" {
		return
	}
	left := expr.ChildByFieldName("left")
	right := expr.ChildByFieldName("right")
	if left == nil || right == nil || left.Kind() != "member_expression" {
		return
	}
	obj := left.ChildByFieldName("object")
	prop := left.ChildByFieldName("property")
	if obj == nil || prop == nil {
		return
	}

	switch {
	case p.isIdentifier(obj, "module") && p.text(prop) == "exports":
		p.moduleExports(stmt, right)
	case p.isIdentifier(obj, "exports") || p.isModuleExports(obj):
		p.namedLegacyExport(stmt, p.text(prop), right)
	}
}

func (p *pass) isIdentifier(n *sitter.Node, name string) bool {
	return n.Kind() == "identifier" && p.text(n) == name
}

func (p *pass) isModuleExports(n *sitter.Node) bool {
	if n.Kind() != "member_expression" {
		return false
	}
	obj := n.ChildByFieldName("object")
	prop := n.ChildByFieldName("property")
	return obj != nil && prop != nil && p.isIdentifier(obj, "module") && p.text(prop) == "exports"
}

// moduleExports handles `module.exports = X`. X becomes the default binding;
// identifier members of an object literal are also exported by name.
func (p *pass) moduleExports(stmt, right *sitter.Node) {
	if right.Kind() == "identifier" {
		p.remove(stmt)
		p.mod.DefaultName = p.text(right)
		return
	}
	synthetic := SyntheticDefaultName(p.node)
	p.mod.DefaultName = synthetic
	p.replace(stmt, "const "+synthetic+" = "+p.text(right)+";")

	if right.Kind() != "object" {
		return
	}
	for i := uint(0); i < right.NamedChildCount(); i++ {
		member := right.NamedChild(i)
		switch member.Kind() {
		case "shorthand_property_identifier":
			name := p.text(member)
			p.mod.Exports = append(p.mod.Exports, ExportBinding{Local: name, Exported: name})
		case "pair":
			key := member.ChildByFieldName("key")
			value := member.ChildByFieldName("value")
			if key != nil && value != nil && key.Kind() == "property_identifier" && value.Kind() == "identifier" {
				p.mod.Exports = append(p.mod.Exports, ExportBinding{Local: p.text(value), Exported: p.text(key)})
			}
		}
	}
}

// namedLegacyExport handles `exports.name = X`.
func (p *pass) namedLegacyExport(stmt *sitter.Node, name string, right *sitter.Node) {
	p.mod.Exports = append(p.mod.Exports, ExportBinding{Local: name, Exported: name})
	if right.Kind() == "identifier" && p.text(right) == name {
		p.remove(stmt)
		return
	}
	p.replace(stmt, "const "+name+" = "+p.text(right)+";")
}

// legacyRequire removes `const x = require("./rel")` and
// `const { a, b: c } = require("./rel")`, recording the bindings. Requires of
// packages stay in the body as written.
func (p *pass) legacyRequire(stmt *sitter.Node) {
	decls := parser.Declarators(stmt)
	if len(decls) != 1 {
		return
	}
	value := decls[0].ChildByFieldName("value")
	if !parser.IsRequireCall(value, p.src) {
		return
	}
	spec := parser.RequireSpecifier(value, p.src)
	if !parser.IsRelativeSpecifier(spec) {
		return
	}
	target := p.targetOf(spec)

	name := decls[0].ChildByFieldName("name")
	var bindings []ImportBinding
	switch name.Kind() {
	case "identifier":
		bindings = append(bindings, ImportBinding{Local: p.text(name), Imported: ImportNamespace, Require: true})
	case "object_pattern":
		for i := uint(0); i < name.NamedChildCount(); i++ {
			member := name.NamedChild(i)
			switch member.Kind() {
			case "shorthand_property_identifier_pattern":
				local := p.text(member)
				bindings = append(bindings, ImportBinding{Local: local, Imported: local, Require: true})
			case "pair_pattern":
				key := member.ChildByFieldName("key")
				val := member.ChildByFieldName("value")
				if key == nil || val == nil || val.Kind() != "identifier" {
					p.note(stmt, "kept require of %q: destructuring too complex to inline", spec)
					return
				}
				bindings = append(bindings, ImportBinding{Local: p.text(val), Imported: p.text(key), Require: true})
			default:
				p.note(stmt, "kept require of %q: destructuring too complex to inline", spec)
				return
			}
		}
	default:
		return
	}

	p.remove(stmt)
	for _, b := range bindings {
		b.Specifier = spec
		b.Target = target
		p.mod.ImportBindings = append(p.mod.ImportBindings, b)
	}
}
