package graph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"nyein/internal/core/errors"
	"nyein/internal/engine/parser"
	"nyein/internal/shared/observability"
	"nyein/internal/shared/util"

	"github.com/gobwas/glob"
)

type Options struct {
	// Root bounds the project; relative specifiers resolving outside it are skipped.
	Root          string
	Skip          []string
	FailOnSkipped bool
	FollowRequire bool
}

// Builder discovers the files reachable from an entry and orders them.
// A Builder is safe to reuse across builds but not concurrently.
type Builder struct {
	parser   *parser.Parser
	resolver *SpecifierResolver
	root     string
	skip     []glob.Glob
	opts     Options
}

func NewBuilder(p *parser.Parser, opts Options) (*Builder, error) {
	root := opts.Root
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "resolve graph root")
	}

	compiled := make([]glob.Glob, 0, len(opts.Skip))
	for _, pattern := range opts.Skip {
		g, err := glob.Compile(util.NormalizePatternPath(pattern), '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid skip pattern %q", pattern))
		}
		compiled = append(compiled, g)
	}

	return &Builder{
		parser:   p,
		resolver: NewSpecifierResolver(),
		root:     absRoot,
		skip:     compiled,
		opts:     opts,
	}, nil
}

func (b *Builder) Root() string {
	return b.root
}

type visitState int

const (
	unvisited visitState = iota
	onPath
	finished
)

type frame struct {
	path string
	next int
}

// Build walks the import graph depth-first from entry. A node is appended to
// the order once every dependency first seen from it has been appended, so
// acyclic graphs come out dependencies first with the entry last. An edge back
// to a node on the current path is recorded as a cycle and treated as
// satisfied.
func (b *Builder) Build(ctx context.Context, entry string) (*Result, error) {
	absEntry, err := filepath.Abs(entry)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGraph, "resolve entry path")
	}
	if info, err := os.Stat(absEntry); err != nil || info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeGraph, "entry file not found"), errors.CtxEntry, entry)
	}
	if _, inside := util.RelativeSlash(b.root, absEntry); !inside {
		return nil, errors.AddContext(errors.New(errors.CodeGraph, "entry file is outside the project root"), errors.CtxEntry, entry)
	}

	res := &Result{Graph: newDependencyGraph(absEntry)}
	state := map[string]visitState{}

	if err := b.load(res, absEntry); err != nil {
		return nil, err
	}
	state[absEntry] = onPath
	stack := []*frame{{path: absEntry}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		deps := res.Graph.Edges[top.path]
		if top.next < len(deps) {
			dep := deps[top.next]
			top.next++
			switch state[dep] {
			case unvisited:
				if err := b.load(res, dep); err != nil {
					return nil, err
				}
				state[dep] = onPath
				stack = append(stack, &frame{path: dep})
			case onPath:
				cycle := cycleFrom(framePaths(stack), dep)
				res.Warnings.Cycles = append(res.Warnings.Cycles, Cycle{Path: b.relativeAll(cycle)})
				observability.GraphCyclesTotal.Inc()
			}
			continue
		}
		stack = stack[:len(stack)-1]
		state[top.path] = finished
		res.Order = append(res.Order, top.path)
	}

	observability.GraphNodes.Set(float64(len(res.Graph.Nodes)))
	observability.SkippedSpecifiersTotal.Add(float64(len(res.Warnings.Skipped)))

	if b.opts.FailOnSkipped && len(res.Warnings.Skipped) > 0 {
		parts := make([]string, 0, len(res.Warnings.Skipped))
		for _, s := range res.Warnings.Skipped {
			parts = append(parts, fmt.Sprintf("%s: %q (%s)", s.Importer, s.Specifier, s.Reason))
		}
		err := errors.New(errors.CodeGraph, "unresolved imports: "+strings.Join(parts, "; "))
		return nil, errors.AddContext(err, errors.CtxEntry, res.Graph.Node(absEntry).RelativePath)
	}
	return res, nil
}

func framePaths(stack []*frame) []string {
	paths := make([]string, len(stack))
	for i, f := range stack {
		paths[i] = f.path
	}
	return paths
}

// load reads, classifies and parses one file, filling its node and edges.
func (b *Builder) load(res *Result, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeGraph, "read source file"), errors.CtxPath, path)
	}

	rel, _ := util.RelativeSlash(b.root, path)
	node := &SourceNode{
		Path:         path,
		RelativePath: rel,
		Content:      content,
		Extension:    CategoryOf(path),
		Format:       FormatNone,
	}
	res.Graph.Nodes[path] = node

	// Unsupported files stay in the graph without edges so the format
	// validator can name them.
	if node.Extension == CategoryUnsupported || !b.parser.IsSupportedPath(path) {
		return nil
	}

	tree, err := b.parser.Parse(path, content)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, rel)
	}
	defer tree.Close()

	if lines := tree.SyntaxErrors(); len(lines) > 0 {
		slog.Warn("syntax errors in source file", "file", rel, "lines", lines)
	}
	node.Format = DetectFormat(tree)

	seen := make(map[string]bool)
	for _, ref := range collectImports(tree, b.opts.FollowRequire) {
		spec := NormalizeSpecifier(ref.Specifier)
		if !parser.IsRelativeSpecifier(spec) {
			continue
		}
		if ref.Dynamic {
			b.recordSkip(res, rel, spec, ReasonDynamicImport)
			continue
		}
		if b.matchesSkip(spec) {
			b.recordSkip(res, rel, spec, ReasonPattern)
			continue
		}
		target, ok := b.resolver.Resolve(path, spec)
		if !ok {
			b.recordSkip(res, rel, spec, ReasonUnresolved)
			continue
		}
		targetRel, inside := util.RelativeSlash(b.root, target)
		if !inside {
			b.recordSkip(res, rel, spec, ReasonOutsideRoot)
			continue
		}
		if b.matchesSkip(targetRel) {
			b.recordSkip(res, rel, spec, ReasonPattern)
			continue
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		res.Graph.Edges[path] = append(res.Graph.Edges[path], target)
	}
	return nil
}

func (b *Builder) recordSkip(res *Result, importer, spec, reason string) {
	res.Warnings.Skipped = append(res.Warnings.Skipped, SkippedSpecifier{
		Importer:  importer,
		Specifier: spec,
		Reason:    reason,
	})
}

func (b *Builder) matchesSkip(candidate string) bool {
	candidate = util.NormalizePatternPath(candidate)
	for _, g := range b.skip {
		if g.Match(candidate) {
			return true
		}
	}
	return false
}

func (b *Builder) relativeAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i], _ = util.RelativeSlash(b.root, p)
	}
	return out
}
