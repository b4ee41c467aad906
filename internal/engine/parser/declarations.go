package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// DeclKind groups top-level declarations by the namespace they occupy at
// runtime.
type DeclKind string

const (
	DeclVariable DeclKind = "variable"
	DeclFunction DeclKind = "function"
	DeclClass    DeclKind = "class"
	DeclType     DeclKind = "type"
	DeclOther    DeclKind = "other"
)

// Declared is one name bound by a declaration statement.
type Declared struct {
	Name string
	Kind DeclKind
	Node *sitter.Node
}

// DeclarationKind classifies a declaration statement node.
func DeclarationKind(node *sitter.Node) DeclKind {
	if node == nil {
		return DeclOther
	}
	switch node.Kind() {
	case "lexical_declaration", "variable_declaration":
		return DeclVariable
	case "function_declaration", "generator_function_declaration", "function_signature":
		return DeclFunction
	case "class_declaration", "abstract_class_declaration":
		return DeclClass
	case "interface_declaration", "type_alias_declaration":
		return DeclType
	case "enum_declaration", "internal_module", "module":
		return DeclOther
	case "ambient_declaration":
		if inner := firstDeclaration(node); inner != nil {
			return DeclarationKind(inner)
		}
	}
	return DeclOther
}

// DeclaredNames lists every binding introduced by a declaration statement,
// including each identifier inside destructuring patterns.
func DeclaredNames(node *sitter.Node, source []byte) []Declared {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "lexical_declaration", "variable_declaration":
		var out []Declared
		for _, decl := range Declarators(node) {
			for _, name := range PatternNames(decl.ChildByFieldName("name"), source) {
				out = append(out, Declared{Name: name, Kind: DeclVariable, Node: decl})
			}
		}
		return out
	case "ambient_declaration":
		return DeclaredNames(firstDeclaration(node), source)
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration",
		"interface_declaration", "type_alias_declaration", "enum_declaration",
		"internal_module", "module":
		name := node.ChildByFieldName("name")
		if name == nil || name.Kind() == "string" {
			return nil
		}
		return []Declared{{Name: NodeText(name, source), Kind: DeclarationKind(node), Node: node}}
	}
	return nil
}

// Declarators returns the variable_declarator children of a variable
// statement.
func Declarators(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() == "variable_declarator" {
			out = append(out, child)
		}
	}
	return out
}

// PatternNames returns the identifiers bound by a binding pattern.
func PatternNames(node *sitter.Node, source []byte) []string {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{NodeText(node, source)}
	case "pair_pattern":
		return PatternNames(node.ChildByFieldName("value"), source)
	case "assignment_pattern", "object_assignment_pattern":
		return PatternNames(node.ChildByFieldName("left"), source)
	case "required_parameter", "optional_parameter":
		return PatternNames(node.ChildByFieldName("pattern"), source)
	case "object_pattern", "array_pattern", "rest_pattern", "formal_parameters":
		var out []string
		for i := uint(0); i < node.NamedChildCount(); i++ {
			out = append(out, PatternNames(node.NamedChild(i), source)...)
		}
		return out
	}
	return nil
}

func firstDeclaration(node *sitter.Node) *sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "lexical_declaration", "variable_declaration",
			"function_declaration", "generator_function_declaration", "function_signature",
			"class_declaration", "abstract_class_declaration",
			"interface_declaration", "type_alias_declaration", "enum_declaration",
			"internal_module", "module":
			return child
		}
	}
	return nil
}
