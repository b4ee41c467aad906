package format

import (
	"fmt"
	"sort"
	"strings"

	"nyein/internal/core/errors"
	"nyein/internal/engine/graph"
)

// Rule identifies a format check. Rules run in declaration order and the
// first failing rule stops a strict validation.
type Rule string

const (
	RuleUnsupportedExtension Rule = "unsupported extension"
	RuleMixedExtensions      Rule = "mixed extensions unsupported"
	RuleLegacyModuleSystem   Rule = "legacy module system unsupported"
)

var ruleOrder = []Rule{RuleUnsupportedExtension, RuleMixedExtensions, RuleLegacyModuleSystem}

// Violation is one failed rule with the files that caused it. Chains holds,
// per file, the import chain from the entry that reaches it.
type Violation struct {
	Rule   Rule
	Files  []string
	Chains map[string][]string
}

func (v Violation) Message() string {
	return fmt.Sprintf("%s: %s", v.Rule, strings.Join(v.Files, ", "))
}

type Result struct {
	Family     graph.ExtensionCategory
	Violations []Violation
	Evaluated  int
}

func (r Result) OK() bool {
	return len(r.Violations) == 0
}

// Validator enforces a homogeneous, import/export based, single-family file
// set. In strict mode the first violation is returned as a CodeFormat error;
// otherwise every violation is reported and the caller decides.
type Validator struct {
	strict bool
}

func NewValidator(strict bool) *Validator {
	return &Validator{strict: strict}
}

func (v *Validator) Strict() bool {
	return v.strict
}

func (v *Validator) Validate(res *graph.Result) (Result, error) {
	if res == nil || res.Graph == nil {
		return Result{}, errors.New(errors.CodeInternal, "format validation needs a dependency graph")
	}
	nodes := res.OrderedNodes()
	out := Result{Evaluated: len(nodes), Family: familyOf(nodes)}

	for _, rule := range ruleOrder {
		files := offenders(rule, nodes)
		if len(files) == 0 {
			continue
		}
		violation := Violation{Rule: rule, Files: relative(res.Graph, files), Chains: chains(res.Graph, files)}
		out.Violations = append(out.Violations, violation)
		if v.strict {
			return out, violationError(violation)
		}
	}
	return out, nil
}

func violationError(v Violation) error {
	err := errors.New(errors.CodeFormat, v.Message())
	return errors.AddContext(err, errors.CtxFiles, v.Files)
}

func offenders(rule Rule, nodes []*graph.SourceNode) []string {
	var files []string
	switch rule {
	case RuleUnsupportedExtension:
		for _, n := range nodes {
			if n.Extension == graph.CategoryUnsupported {
				files = append(files, n.Path)
			}
		}
	case RuleMixedExtensions:
		byFamily := map[graph.ExtensionCategory][]string{}
		for _, n := range nodes {
			if n.Extension != graph.CategoryUnsupported {
				byFamily[n.Extension] = append(byFamily[n.Extension], n.Path)
			}
		}
		if len(byFamily[graph.CategoryTypeScript]) > 0 && len(byFamily[graph.CategoryJavaScript]) > 0 {
			files = append(files, byFamily[graph.CategoryTypeScript]...)
			files = append(files, byFamily[graph.CategoryJavaScript]...)
		}
	case RuleLegacyModuleSystem:
		// Legacy and mixed files fail on their own, which also covers a set
		// that holds both ESM and legacy files.
		for _, n := range nodes {
			if n.Format == graph.FormatLegacy || n.Format == graph.FormatMixed {
				files = append(files, n.Path)
			}
		}
	}
	return files
}

// familyOf returns the family shared by every supported file, or
// CategoryUnsupported when the set is empty or mixed.
func familyOf(nodes []*graph.SourceNode) graph.ExtensionCategory {
	family := graph.CategoryUnsupported
	for _, n := range nodes {
		if n.Extension == graph.CategoryUnsupported {
			continue
		}
		if family == graph.CategoryUnsupported {
			family = n.Extension
			continue
		}
		if family != n.Extension {
			return graph.CategoryUnsupported
		}
	}
	return family
}

func relative(g *graph.DependencyGraph, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if n := g.Node(p); n != nil && n.RelativePath != "" {
			out = append(out, n.RelativePath)
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func chains(g *graph.DependencyGraph, paths []string) map[string][]string {
	out := make(map[string][]string, len(paths))
	for _, p := range paths {
		chain, ok := g.FindImportChain(g.Entry, p)
		if !ok {
			continue
		}
		rel := relative(g, []string{p})[0]
		out[rel] = make([]string, 0, len(chain))
		for _, step := range chain {
			out[rel] = append(out[rel], g.Node(step).RelativePath)
		}
	}
	return out
}
