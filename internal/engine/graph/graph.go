package graph

import (
	"sort"
)

// ExtensionCategory is the script family a file belongs to by extension.
type ExtensionCategory string

const (
	CategoryTypeScript  ExtensionCategory = "ts"
	CategoryJavaScript  ExtensionCategory = "js"
	CategoryUnsupported ExtensionCategory = "unsupported"
)

// ModuleFormat is the module system a file's syntax declares.
type ModuleFormat string

const (
	FormatNone   ModuleFormat = "none"
	FormatESM    ModuleFormat = "esm"
	FormatLegacy ModuleFormat = "legacy"
	FormatMixed  ModuleFormat = "mixed"
)

// SourceNode is one discovered file. Content is read once during discovery
// and never re-read.
type SourceNode struct {
	Path         string
	RelativePath string
	Content      []byte
	Extension    ExtensionCategory
	Format       ModuleFormat
}

// DependencyGraph maps each node to the nodes it imports, in source order.
type DependencyGraph struct {
	Entry string
	Nodes map[string]*SourceNode
	Edges map[string][]string
}

func newDependencyGraph(entry string) *DependencyGraph {
	return &DependencyGraph{
		Entry: entry,
		Nodes: make(map[string]*SourceNode),
		Edges: make(map[string][]string),
	}
}

// Node returns the node for path, or nil.
func (g *DependencyGraph) Node(path string) *SourceNode {
	return g.Nodes[path]
}

// Paths returns every node path in lexical order.
func (g *DependencyGraph) Paths() []string {
	paths := make([]string, 0, len(g.Nodes))
	for p := range g.Nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.Edges {
		n += len(deps)
	}
	return n
}

// ProcessingOrder lists node paths dependencies first, entry last.
type ProcessingOrder []string

// Index returns the position of path in the order, or -1.
func (o ProcessingOrder) Index(path string) int {
	for i, p := range o {
		if p == path {
			return i
		}
	}
	return -1
}

// Skip reasons.
const (
	ReasonUnresolved    = "unresolved"
	ReasonOutsideRoot   = "outside project root"
	ReasonPattern       = "matched graph.skip"
	ReasonDynamicImport = "dynamic import"
)

// SkippedSpecifier is a relative specifier that did not become an edge.
type SkippedSpecifier struct {
	Importer  string
	Specifier string
	Reason    string
}

// Cycle is an import loop, starting at the node that was revisited.
type Cycle struct {
	Path []string
}

type Warnings struct {
	Skipped []SkippedSpecifier
	Cycles  []Cycle
}

func (w Warnings) Empty() bool {
	return len(w.Skipped) == 0 && len(w.Cycles) == 0
}

// Result is the Graph Builder output.
type Result struct {
	Graph    *DependencyGraph
	Order    ProcessingOrder
	Warnings Warnings
}

// OrderedNodes returns the nodes in processing order.
func (r *Result) OrderedNodes() []*SourceNode {
	nodes := make([]*SourceNode, 0, len(r.Order))
	for _, p := range r.Order {
		if n := r.Graph.Nodes[p]; n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
