package graph

import (
	"path/filepath"
	"strings"

	"nyein/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var (
	typeScriptExtensions = []string{".ts", ".mts", ".cts"}
	javaScriptExtensions = []string{".js", ".mjs", ".cjs"}
)

// CategoryOf classifies path by extension. TSX and JSX are unsupported.
func CategoryOf(path string) ExtensionCategory {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range typeScriptExtensions {
		if ext == e {
			return CategoryTypeScript
		}
	}
	for _, e := range javaScriptExtensions {
		if ext == e {
			return CategoryJavaScript
		}
	}
	return CategoryUnsupported
}

// legacyByExtension reports extensions that force the CommonJS loader.
func legacyByExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".cts" || ext == ".cjs"
}

// DetectFormat inspects a parsed file for import/export syntax and for the
// call-based module system (require calls, module.exports, exports.x).
func DetectFormat(tree *parser.Tree) ModuleFormat {
	esm, legacy := false, legacyByExtension(tree.Path)
	src := tree.Source

	for _, stmt := range tree.TopLevel() {
		switch stmt.Kind() {
		case "import_statement", "export_statement":
			esm = true
		}
	}

	parser.Walk(tree.Root(), func(n *sitter.Node) bool {
		if legacy {
			return false
		}
		switch n.Kind() {
		case "call_expression":
			if parser.IsRequireCall(n, src) {
				legacy = true
			}
		case "member_expression":
			if isCommonJSExportTarget(n, src) {
				legacy = true
			}
		}
		return true
	})

	switch {
	case esm && legacy:
		return FormatMixed
	case esm:
		return FormatESM
	case legacy:
		return FormatLegacy
	default:
		return FormatNone
	}
}

// isCommonJSExportTarget matches `module.exports` and `exports.<name>`.
func isCommonJSExportTarget(n *sitter.Node, src []byte) bool {
	obj := n.ChildByFieldName("object")
	prop := n.ChildByFieldName("property")
	if obj == nil || prop == nil || obj.Kind() != "identifier" {
		return false
	}
	switch parser.NodeText(obj, src) {
	case "module":
		return parser.NodeText(prop, src) == "exports"
	case "exports":
		return isAssignmentTarget(n)
	}
	return false
}

func isAssignmentTarget(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil || parent.Kind() != "assignment_expression" {
		return false
	}
	left := parent.ChildByFieldName("left")
	return left != nil && left.StartByte() == n.StartByte() && left.EndByte() == n.EndByte()
}
