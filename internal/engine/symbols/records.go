package symbols

import (
	"fmt"
	"sort"
	"strings"

	"nyein/internal/engine/parser"
	"nyein/internal/engine/strip"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Kind string

const (
	KindVariable Kind = "variable"
	KindFunction Kind = "function"
	KindClass    Kind = "class"
)

// Record is a top-level name and every file that declares it, in
// processing order. Lines[i] is the 1-indexed source line of the first
// declaration in Files[i].
type Record struct {
	Name  string
	Kind  Kind
	Files []string
	Lines []int
}

func (r Record) Collides() bool {
	return len(r.Files) > 1
}

// Line returns the declaring line in Files[i], or 0 when unknown.
func (r Record) Line(i int) int {
	if i < 0 || i >= len(r.Lines) {
		return 0
	}
	return r.Lines[i]
}

// Table collects records across files in the order they are added.
type Table struct {
	byName map[string]*Record
	names  []string
}

func NewTable() *Table {
	return &Table{byName: make(map[string]*Record)}
}

func (t *Table) add(name string, kind Kind, file string, line int) {
	rec, ok := t.byName[name]
	if !ok {
		rec = &Record{Name: name, Kind: kind}
		t.byName[name] = rec
		t.names = append(t.names, name)
	}
	for _, f := range rec.Files {
		if f == file {
			return
		}
	}
	rec.Files = append(rec.Files, file)
	rec.Lines = append(rec.Lines, line)
}

// Records returns every record sorted by name.
func (t *Table) Records() []Record {
	names := append([]string(nil), t.names...)
	sort.Strings(names)
	out := make([]Record, 0, len(names))
	for _, n := range names {
		out = append(out, *t.byName[n])
	}
	return out
}

func (t *Table) Collisions() []Record {
	var out []Record
	for _, r := range t.Records() {
		if r.Collides() {
			out = append(out, r)
		}
	}
	return out
}

// collect adds the top-level variable, function and class declarations of
// one stripped body. Declarators initialised by a bare require() call are
// import aliases and are left out.
func (t *Table) collect(tree *parser.Tree, m *strip.Module) {
	src := tree.Source
	for _, stmt := range tree.TopLevel() {
		for _, d := range topLevelNames(stmt, src) {
			t.add(d.name, d.kind, m.Path(), m.SourceLine(d.row))
		}
	}
}

type topLevelName struct {
	name string
	kind Kind
	row  int
}

func topLevelNames(stmt *sitter.Node, src []byte) []topLevelName {
	var kind Kind
	switch parser.DeclarationKind(stmt) {
	case parser.DeclVariable:
		kind = KindVariable
	case parser.DeclFunction:
		kind = KindFunction
	case parser.DeclClass:
		kind = KindClass
	default:
		return nil
	}

	var out []topLevelName
	for _, d := range parser.DeclaredNames(stmt, src) {
		if kind == KindVariable && parser.IsRequireCall(d.Node.ChildByFieldName("value"), src) {
			continue
		}
		out = append(out, topLevelName{name: d.Name, kind: kind, row: int(d.Node.StartPosition().Row)})
	}
	return out
}

// describe renders collisions as "x (variable): a.ts, b.ts; y (...)".
func describe(collisions []Record, rel func(string) string) string {
	parts := make([]string, 0, len(collisions))
	for _, c := range collisions {
		files := make([]string, len(c.Files))
		for i, f := range c.Files {
			files[i] = rel(f)
		}
		parts = append(parts, fmt.Sprintf("%s (%s): %s", c.Name, c.Kind, strings.Join(files, ", ")))
	}
	return strings.Join(parts, "; ")
}
