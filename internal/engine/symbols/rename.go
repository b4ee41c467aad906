package symbols

import (
	"fmt"

	"nyein/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// renamer rewrites references to top-level bindings of one file. A name is
// only rewritten where it resolves to the top-level binding: any nested scope
// that declares the same name hides it.
type renamer struct {
	src        []byte
	names      map[string]string
	namespaces map[string]map[string]string
	shadow     map[string]int
	edits      []parser.Edit
	notes      []string
}

// Rename applies names (top-level name -> replacement) and namespace member
// rewrites (ns -> member -> replacement) to a parsed body.
func Rename(tree *parser.Tree, names map[string]string, namespaces map[string]map[string]string) (string, []string, error) {
	if len(names) == 0 && len(namespaces) == 0 {
		return string(tree.Source), nil, nil
	}
	r := &renamer{
		src:        tree.Source,
		names:      names,
		namespaces: namespaces,
		shadow:     make(map[string]int),
	}
	r.visit(tree.Root())
	out, err := parser.Splice(tree.Source, r.edits)
	if err != nil {
		return "", nil, err
	}
	return out, r.notes, nil
}

func (r *renamer) text(n *sitter.Node) string {
	return parser.NodeText(n, r.src)
}

func (r *renamer) visible(name string) bool {
	return r.shadow[name] == 0
}

func (r *renamer) replacement(name string) (string, bool) {
	if !r.visible(name) {
		return "", false
	}
	repl, ok := r.names[name]
	return repl, ok
}

func (r *renamer) replace(n *sitter.Node, text string) {
	r.edits = append(r.edits, parser.Edit{Start: n.StartByte(), End: n.EndByte(), Text: text})
}

func (r *renamer) note(n *sitter.Node, format string, args ...any) {
	r.notes = append(r.notes, fmt.Sprintf("line %d: %s", n.StartPosition().Row+1, fmt.Sprintf(format, args...)))
}

func (r *renamer) visit(n *sitter.Node) {
	if n == nil {
		return
	}
	declared := r.scopeNames(n)
	for _, name := range declared {
		r.shadow[name]++
	}
	defer func() {
		for _, name := range declared {
			r.shadow[name]--
		}
	}()

	switch n.Kind() {
	case "identifier", "type_identifier":
		name := r.text(n)
		if repl, ok := r.replacement(name); ok {
			r.replace(n, repl)
		} else if _, ok := r.namespaces[name]; ok && r.visible(name) {
			r.note(n, "namespace import %s used as a value is left as written", name)
		}
		return
	case "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		name := r.text(n)
		if repl, ok := r.replacement(name); ok {
			r.replace(n, name+": "+repl)
		}
		return
	case "member_expression":
		if r.namespaceMember(n, n.ChildByFieldName("object"), n.ChildByFieldName("property")) {
			return
		}
	case "nested_type_identifier":
		if r.namespaceMember(n, n.ChildByFieldName("module"), n.ChildByFieldName("name")) {
			return
		}
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		r.visit(n.Child(i))
	}
}

// namespaceMember rewrites ns.member to the member's final name.
func (r *renamer) namespaceMember(n, object, property *sitter.Node) bool {
	if object == nil || property == nil || object.Kind() != "identifier" {
		return false
	}
	ns := r.text(object)
	members, ok := r.namespaces[ns]
	if !ok || !r.visible(ns) {
		return false
	}
	member := r.text(property)
	final, ok := members[member]
	if !ok {
		r.note(n, "%s.%s has no matching export", ns, member)
		return true
	}
	r.replace(n, final)
	return true
}

// scopeNames returns the names a node binds for its own subtree. Program
// level declarations are the ones being renamed, so the program node binds
// nothing here. `var` belongs to the enclosing function, never to a block.
func (r *renamer) scopeNames(n *sitter.Node) []string {
	var out []string
	switch n.Kind() {
	case "statement_block", "switch_body":
		out = append(out, r.blockNames(n)...)
	case "class_static_block":
		out = append(out, r.blockNames(n)...)
		out = append(out, r.hoistedVars(n)...)
	case "function_declaration", "generator_function_declaration", "function_signature",
		"method_definition", "method_signature", "abstract_method_signature", "arrow_function":
		out = append(out, r.paramNames(n)...)
		out = append(out, r.hoistedVars(n.ChildByFieldName("body"))...)
	case "function_expression", "function", "generator_function":
		out = append(out, r.paramNames(n)...)
		out = append(out, r.hoistedVars(n.ChildByFieldName("body"))...)
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, r.text(name))
		}
	case "class":
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, r.text(name))
		}
		out = append(out, r.typeParams(n)...)
	case "class_declaration", "abstract_class_declaration", "interface_declaration", "type_alias_declaration":
		out = append(out, r.typeParams(n)...)
	case "for_statement":
		if init := n.ChildByFieldName("initializer"); init != nil && init.Kind() != "variable_declaration" {
			for _, d := range parser.DeclaredNames(init, r.src) {
				out = append(out, d.Name)
			}
		}
	case "for_in_statement":
		if kind := n.ChildByFieldName("kind"); kind != nil && r.text(kind) != "var" {
			out = append(out, parser.PatternNames(n.ChildByFieldName("left"), r.src)...)
		}
	case "catch_clause":
		out = append(out, parser.PatternNames(n.ChildByFieldName("parameter"), r.src)...)
	}
	return out
}

// blockNames lists the block-scoped declarations directly inside a block.
func (r *renamer) blockNames(n *sitter.Node) []string {
	var out []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() == "variable_declaration" {
			continue
		}
		for _, d := range parser.DeclaredNames(child, r.src) {
			out = append(out, d.Name)
		}
	}
	return out
}

// hoistedVars collects every `var` binding under body, stopping at nested
// functions which hoist their own.
func (r *renamer) hoistedVars(body *sitter.Node) []string {
	var out []string
	parser.Walk(body, func(n *sitter.Node) bool {
		if n != body && varScope[n.Kind()] {
			return false
		}
		switch n.Kind() {
		case "variable_declaration":
			for _, d := range parser.DeclaredNames(n, r.src) {
				out = append(out, d.Name)
			}
		case "for_in_statement":
			if kind := n.ChildByFieldName("kind"); kind != nil && r.text(kind) == "var" {
				out = append(out, parser.PatternNames(n.ChildByFieldName("left"), r.src)...)
			}
		}
		return true
	})
	return out
}

var varScope = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_expression":            true,
	"function":                       true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
	"class_static_block":             true,
}

func (r *renamer) paramNames(n *sitter.Node) []string {
	var out []string
	if params := n.ChildByFieldName("parameters"); params != nil {
		out = append(out, parser.PatternNames(params, r.src)...)
	}
	if single := n.ChildByFieldName("parameter"); single != nil {
		out = append(out, parser.PatternNames(single, r.src)...)
	}
	return append(out, r.typeParams(n)...)
}

func (r *renamer) typeParams(n *sitter.Node) []string {
	params := n.ChildByFieldName("type_parameters")
	if params == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p.Kind() != "type_parameter" {
			continue
		}
		if name := p.ChildByFieldName("name"); name != nil {
			out = append(out, r.text(name))
		}
	}
	return out
}
