package strip

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nyein/internal/core/errors"
	"nyein/internal/engine/graph"
	"nyein/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Stripper removes module boundaries from source files: imports go away
// (external ones are kept for hoisting), export syntax is peeled off and
// every declaration becomes a plain top-level binding.
type Stripper struct {
	parser   *parser.Parser
	resolver *graph.SpecifierResolver
	cache    *Cache
}

func NewStripper(p *parser.Parser, cache *Cache) *Stripper {
	return &Stripper{
		parser:   p,
		resolver: graph.NewSpecifierResolver(),
		cache:    cache,
	}
}

// StripAll strips every supported node in processing order. Unsupported
// files can only reach this point with format checks relaxed; they are
// left out with a warning.
func (s *Stripper) StripAll(ctx context.Context, res *graph.Result) ([]*Module, error) {
	nodes := res.OrderedNodes()
	out := make([]*Module, 0, len(nodes))
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if node.Extension == graph.CategoryUnsupported {
			slog.Warn("leaving unsupported file out of the merge", "file", node.RelativePath)
			continue
		}
		mod, err := s.Strip(node)
		if err != nil {
			return nil, err
		}
		out = append(out, mod)
	}
	return out, nil
}

// Strip processes one node. Modules may be shared through the cache and
// must be treated as read-only.
func (s *Stripper) Strip(node *graph.SourceNode) (*Module, error) {
	resolve := func(spec string) string {
		if !parser.IsRelativeSpecifier(spec) {
			return ""
		}
		target, ok := s.resolver.Resolve(node.Path, spec)
		if !ok {
			return ""
		}
		return target
	}
	if cached, ok := s.cache.get(node, resolve); ok {
		return cached, nil
	}

	tree, err := s.parser.Parse(node.Path, node.Content)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, node.RelativePath)
	}
	defer tree.Close()

	p := &pass{
		node:    node,
		src:     node.Content,
		mod:     &Module{Node: node},
		resolve: resolve,
	}
	for _, stmt := range tree.TopLevel() {
		p.statement(stmt)
	}

	body, origins, err := parser.SpliceLines(node.Content, p.edits)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "splice stripped module"), errors.CtxPath, node.RelativePath)
	}
	p.mod.Body = trimBody(body)
	dropped := strings.Count(body[:len(body)-len(strings.TrimLeft(body, "\r\n"))], "\n")
	p.mod.LineOrigins = origins[min(dropped, len(origins)):]

	s.cache.put(node, p.mod)
	return p.mod, nil
}

func trimBody(body string) string {
	return strings.TrimRight(strings.TrimLeft(body, "\r\n"), " \t\r\n")
}

// pass holds the edits collected for one file.
type pass struct {
	node    *graph.SourceNode
	src     []byte
	mod     *Module
	edits   []parser.Edit
	resolve func(spec string) string
}

func (p *pass) statement(stmt *sitter.Node) {
	switch stmt.Kind() {
	case "import_statement":
		p.importStatement(stmt)
	case "export_statement":
		p.exportStatement(stmt)
	case "expression_statement":
		p.legacyAssignment(stmt)
	case "lexical_declaration", "variable_declaration":
		p.legacyRequire(stmt)
	}
}

func (p *pass) text(n *sitter.Node) string {
	return parser.NodeText(n, p.src)
}

func (p *pass) remove(stmt *sitter.Node) {
	p.edits = append(p.edits, parser.Edit{Start: stmt.StartByte(), End: parser.LineEnd(p.src, stmt.EndByte())})
}

func (p *pass) replace(stmt *sitter.Node, text string) {
	p.edits = append(p.edits, parser.Edit{Start: stmt.StartByte(), End: stmt.EndByte(), Text: text})
}

func (p *pass) note(n *sitter.Node, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.mod.Notes = append(p.mod.Notes, fmt.Sprintf("line %d: %s", n.StartPosition().Row+1, msg))
}

func (p *pass) targetOf(spec string) string {
	if !parser.IsRelativeSpecifier(spec) {
		return ""
	}
	return p.resolve(spec)
}

func (p *pass) importStatement(stmt *sitter.Node) {
	spec := parser.ImportSource(stmt, p.src)
	p.remove(stmt)
	if !parser.IsRelativeSpecifier(spec) {
		p.mod.HoistedImports = append(p.mod.HoistedImports, p.text(stmt))
		return
	}
	target := p.targetOf(spec)
	for _, b := range importBindings(stmt, p.src) {
		b.Specifier = spec
		b.Target = target
		p.mod.ImportBindings = append(p.mod.ImportBindings, b)
	}
}

func importBindings(stmt *sitter.Node, src []byte) []ImportBinding {
	var out []ImportBinding
	if req := parser.ChildOfKind(stmt, "import_require_clause"); req != nil {
		if id := parser.ChildOfKind(req, "identifier"); id != nil {
			out = append(out, ImportBinding{Local: parser.NodeText(id, src), Imported: ImportNamespace, Require: true})
		}
		return out
	}
	clause := parser.ChildOfKind(stmt, "import_clause")
	if clause == nil {
		return nil
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			out = append(out, ImportBinding{Local: parser.NodeText(child, src), Imported: ImportDefault})
		case "namespace_import":
			if id := parser.ChildOfKind(child, "identifier"); id != nil {
				out = append(out, ImportBinding{Local: parser.NodeText(id, src), Imported: ImportNamespace})
			}
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "import_specifier" {
					continue
				}
				name := moduleExportName(spec.ChildByFieldName("name"), src)
				local := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = parser.NodeText(alias, src)
				}
				out = append(out, ImportBinding{Local: local, Imported: name})
			}
		}
	}
	return out
}

// moduleExportName reads an identifier or a string export name.
func moduleExportName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Kind() == "string" {
		return parser.StringValue(n, src)
	}
	return parser.NodeText(n, src)
}
