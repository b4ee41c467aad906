package symbols

import (
	"context"
	"fmt"
	"log/slog"

	"nyein/internal/core/errors"
	"nyein/internal/engine/parser"
	"nyein/internal/engine/strip"
	"nyein/internal/shared/observability"
)

// Resolver detects top-level names declared in more than one file and, in
// rename mode, gives each owner a distinct name. It also rewrites references
// to removed relative imports so they name the inlined declaration.
type Resolver struct {
	parser *parser.Parser
	rename bool
}

func NewResolver(p *parser.Parser, rename bool) *Resolver {
	return &Resolver{parser: p, rename: rename}
}

// Result carries the rewritten bodies, aligned with the input modules.
type Result struct {
	Modules    []*strip.Module
	Bodies     []string
	Records    []Record
	Collisions []Record
	// Renames maps file -> original name -> assigned name.
	Renames map[string]map[string]string
	Notes   []string
	Linker  *Linker
}

// EntryExports returns the public names of the module at path with their
// final names, plus the final name of its default export.
func (r *Result) EntryExports(path string) ([]ExportName, string) {
	return r.Linker.EntryExports(path)
}

func (r *Resolver) Resolve(ctx context.Context, modules []*strip.Module) (*Result, error) {
	trees := make([]*parser.Tree, len(modules))
	defer func() {
		for _, t := range trees {
			t.Close()
		}
	}()

	table := NewTable()
	for i, m := range modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree, err := r.parser.Parse(m.Path(), []byte(m.Body))
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, m.Node.RelativePath)
		}
		trees[i] = tree
		table.collect(tree, m)
	}

	rel := relativeNames(modules)
	res := &Result{
		Modules:    modules,
		Records:    table.Records(),
		Collisions: table.Collisions(),
		Renames:    make(map[string]map[string]string),
	}

	if len(res.Collisions) > 0 {
		mode := "strict"
		if r.rename {
			mode = "rename"
		}
		observability.CollisionsTotal.WithLabelValues(mode).Add(float64(len(res.Collisions)))
		if !r.rename {
			names := make([]string, 0, len(res.Collisions))
			for _, c := range res.Collisions {
				names = append(names, c.Name)
			}
			err := errors.New(errors.CodeCollision, "duplicate top-level declarations: "+describe(res.Collisions, rel))
			return res, errors.AddContext(err, errors.CtxSymbol, names)
		}
		for _, c := range res.Collisions {
			for i, file := range c.Files {
				if res.Renames[file] == nil {
					res.Renames[file] = make(map[string]string)
				}
				res.Renames[file][c.Name] = fmt.Sprintf("$%d%s", i+1, c.Name)
			}
			slog.Info("renamed duplicate declaration", "symbol", c.Name, "files", len(c.Files))
		}
	}

	res.Linker = NewLinker(modules, res.Renames)
	res.Bodies = make([]string, len(modules))
	for i, m := range modules {
		names, namespaces, unresolved := res.Linker.bindingRenames(m)
		for local, final := range res.Renames[m.Path()] {
			names[local] = final
		}
		for _, u := range unresolved {
			res.Notes = append(res.Notes, fmt.Sprintf("%s: import %s could not be linked", rel(m.Path()), u))
		}

		body, notes, err := Rename(trees[i], names, namespaces)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "rewrite references"), errors.CtxPath, rel(m.Path()))
		}
		res.Bodies[i] = body
		for _, n := range notes {
			res.Notes = append(res.Notes, rel(m.Path())+": "+n)
		}
	}
	return res, nil
}

func relativeNames(modules []*strip.Module) func(string) string {
	byPath := make(map[string]string, len(modules))
	for _, m := range modules {
		byPath[m.Path()] = m.Node.RelativePath
	}
	return func(path string) string {
		if rel, ok := byPath[path]; ok && rel != "" {
			return rel
		}
		return path
	}
}
