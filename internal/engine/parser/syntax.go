package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeText returns the exact source bytes spanned by node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start >= end || end > uint(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// StringValue returns the contents of a string literal node without quotes.
func StringValue(node *sitter.Node, source []byte) string {
	return trimQuoted(NodeText(node, source))
}

func trimQuoted(value string) string {
	value = strings.TrimSpace(value)
	return strings.Trim(value, "\"'`")
}

// IsRelativeSpecifier reports whether a module specifier points into the
// project rather than at a package.
func IsRelativeSpecifier(spec string) bool {
	spec = trimQuoted(spec)
	return strings.HasPrefix(spec, "./") ||
		strings.HasPrefix(spec, "../") ||
		spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "/")
}

// Walk visits node and its descendants depth-first in source order. fn
// returns false to skip a node's children. An explicit stack keeps deeply
// nested expressions from growing the goroutine stack.
func Walk(node *sitter.Node, fn func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	stack := []*sitter.Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(uint(i)); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// ChildOfKind returns the first direct child whose kind is one of kinds.
func ChildOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

// IsRequireCall reports whether node is `require("<literal>")`.
func IsRequireCall(node *sitter.Node, source []byte) bool {
	if node == nil || node.Kind() != "call_expression" {
		return false
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" || NodeText(fn, source) != "require" {
		return false
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return false
	}
	first := args.NamedChild(0)
	return first != nil && (first.Kind() == "string" || first.Kind() == "template_string")
}

// RequireSpecifier returns the literal argument of a require call.
func RequireSpecifier(node *sitter.Node, source []byte) string {
	if !IsRequireCall(node, source) {
		return ""
	}
	return StringValue(node.ChildByFieldName("arguments").NamedChild(0), source)
}

// ImportSource returns the module specifier of an import or re-export
// statement, including TS `import x = require("y")`.
func ImportSource(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if src := node.ChildByFieldName("source"); src != nil {
		return StringValue(src, source)
	}
	if clause := ChildOfKind(node, "import_require_clause"); clause != nil {
		if src := clause.ChildByFieldName("source"); src != nil {
			return StringValue(src, source)
		}
		if str := ChildOfKind(clause, "string"); str != nil {
			return StringValue(str, source)
		}
	}
	if str := ChildOfKind(node, "string"); str != nil {
		return StringValue(str, source)
	}
	return ""
}
