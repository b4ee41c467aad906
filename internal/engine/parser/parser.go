// # internal/engine/parser/parser.go
package parser

import (
	"fmt"
	"path/filepath"
	"time"

	"nyein/internal/core/errors"
	"nyein/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	loader *GrammarLoader
	pools  map[Language]*ParserPool
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{
		loader: loader,
		pools:  make(map[Language]*ParserPool),
	}
	for lang, grammar := range loader.languages {
		p.pools[lang] = NewParserPool(grammar)
	}
	return p
}

// NewDefaultParser builds a parser for the TypeScript and JavaScript families.
func NewDefaultParser() (*Parser, error) {
	loader, err := NewGrammarLoader()
	if err != nil {
		return nil, err
	}
	return NewParser(loader), nil
}

// LanguageFor returns the grammar that handles path's extension.
func (p *Parser) LanguageFor(path string) (Language, bool) {
	return p.loader.LanguageForExtension(filepath.Ext(path))
}

func (p *Parser) IsSupportedPath(path string) bool {
	_, ok := p.LanguageFor(path)
	return ok
}

func (p *Parser) SupportedExtensions() []string {
	return p.loader.SupportedExtensions()
}

// Parse parses content with the grammar selected by path's extension.
// The caller owns the returned Tree and must Close it.
func (p *Parser) Parse(path string, content []byte) (*Tree, error) {
	lang, ok := p.LanguageFor(path)
	if !ok {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported extension %q", filepath.Ext(path)))
	}
	return p.ParseAs(lang, path, content)
}

// ParseAs parses content with an explicit grammar, regardless of extension.
func (p *Parser) ParseAs(lang Language, path string, content []byte) (*Tree, error) {
	pool := p.pools[lang]
	if pool == nil {
		return nil, errors.New(errors.CodeInternal, fmt.Sprintf("grammar not loaded: %s", lang))
	}

	start := time.Now()
	sp, err := pool.Get()
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "grammar unavailable"), errors.CtxPath, path)
	}
	defer pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxPath, path)
	}
	observability.ParsingDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())

	return &Tree{
		Path:     path,
		Language: lang,
		Source:   content,
		tree:     tree,
	}, nil
}

// Tree is a parsed file plus the bytes it was parsed from.
type Tree struct {
	Path     string
	Language Language
	Source   []byte
	tree     *sitter.Tree
}

func (t *Tree) Root() *sitter.Node {
	if t == nil || t.tree == nil {
		return nil
	}
	return t.tree.RootNode()
}

func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

func (t *Tree) Text(node *sitter.Node) string {
	return NodeText(node, t.Source)
}

// SyntaxErrors returns the 1-based line of every ERROR or MISSING node.
func (t *Tree) SyntaxErrors() []int {
	root := t.Root()
	if root == nil || !root.HasError() {
		return nil
	}
	var lines []int
	Walk(root, func(n *sitter.Node) bool {
		if n.IsError() || n.IsMissing() {
			lines = append(lines, int(n.StartPosition().Row)+1)
			return false
		}
		return n.HasError()
	})
	return lines
}

// TopLevel returns the named statements directly under the program node.
func (t *Tree) TopLevel() []*sitter.Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	count := root.NamedChildCount()
	out := make([]*sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if child := root.NamedChild(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}
