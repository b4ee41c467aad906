// # internal/engine/parser/loader.go
package parser

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Language identifies the grammar used to parse a source file.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
)

// LanguageSpec binds a grammar to the file extensions it handles.
type LanguageSpec struct {
	Name       Language
	Extensions []string
}

// DefaultLanguageSpecs lists the script families the merger understands.
// JSX and TSX are intentionally absent.
func DefaultLanguageSpecs() []LanguageSpec {
	return []LanguageSpec{
		{Name: LangTypeScript, Extensions: []string{".ts", ".mts", ".cts"}},
		{Name: LangJavaScript, Extensions: []string{".js", ".mjs", ".cjs"}},
	}
}

type GrammarLoader struct {
	languages  map[Language]*sitter.Language
	extensions map[string]Language
}

func NewGrammarLoader() (*GrammarLoader, error) {
	return NewGrammarLoaderWithSpecs(DefaultLanguageSpecs())
}

func NewGrammarLoaderWithSpecs(specs []LanguageSpec) (*GrammarLoader, error) {
	gl := &GrammarLoader{
		languages:  make(map[Language]*sitter.Language),
		extensions: make(map[string]Language),
	}

	for _, spec := range specs {
		switch spec.Name {
		case LangTypeScript:
			gl.languages[spec.Name] = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
		case LangJavaScript:
			gl.languages[spec.Name] = sitter.NewLanguage(tree_sitter_javascript.Language())
		default:
			return nil, fmt.Errorf("language %q has no runtime grammar", spec.Name)
		}
		for _, ext := range spec.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if prev, ok := gl.extensions[ext]; ok && prev != spec.Name {
				return nil, fmt.Errorf("extension %s claimed by both %s and %s", ext, prev, spec.Name)
			}
			gl.extensions[ext] = spec.Name
		}
	}

	return gl, nil
}

func (gl *GrammarLoader) Grammar(lang Language) *sitter.Language {
	return gl.languages[lang]
}

func (gl *GrammarLoader) LanguageForExtension(ext string) (Language, bool) {
	lang, ok := gl.extensions[strings.ToLower(ext)]
	return lang, ok
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	extensions := make([]string, 0, len(gl.extensions))
	for ext := range gl.extensions {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
