package format

import (
	"testing"

	"nyein/internal/core/errors"
	"nyein/internal/engine/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	path   string
	ext    graph.ExtensionCategory
	format graph.ModuleFormat
}

// chainResult builds a graph where each file imports the next one and the
// first file is the entry.
func chainResult(files ...fixture) *graph.Result {
	g := &graph.DependencyGraph{
		Entry: files[0].path,
		Nodes: map[string]*graph.SourceNode{},
		Edges: map[string][]string{},
	}
	order := make(graph.ProcessingOrder, 0, len(files))
	for i, f := range files {
		g.Nodes[f.path] = &graph.SourceNode{Path: f.path, RelativePath: f.path, Extension: f.ext, Format: f.format}
		if i+1 < len(files) {
			g.Edges[f.path] = []string{files[i+1].path}
		}
	}
	for i := len(files) - 1; i >= 0; i-- {
		order = append(order, files[i].path)
	}
	return &graph.Result{Graph: g, Order: order}
}

func TestValidate(t *testing.T) {
	ts := graph.CategoryTypeScript
	js := graph.CategoryJavaScript
	cases := []struct {
		name  string
		files []fixture
		rule  Rule
		bad   []string
	}{
		{
			name:  "HomogeneousTypeScript",
			files: []fixture{{"a.ts", ts, graph.FormatESM}, {"b.mts", ts, graph.FormatNone}},
		},
		{
			name:  "HomogeneousJavaScript",
			files: []fixture{{"a.js", js, graph.FormatESM}, {"b.mjs", js, graph.FormatESM}},
		},
		{
			name:  "UnsupportedExtension",
			files: []fixture{{"a.ts", ts, graph.FormatESM}, {"view.tsx", graph.CategoryUnsupported, graph.FormatNone}},
			rule:  RuleUnsupportedExtension,
			bad:   []string{"view.tsx"},
		},
		{
			name:  "MixedFamilies",
			files: []fixture{{"a.ts", ts, graph.FormatESM}, {"b.js", js, graph.FormatESM}},
			rule:  RuleMixedExtensions,
			bad:   []string{"a.ts", "b.js"},
		},
		{
			name:  "LegacyFile",
			files: []fixture{{"a.ts", ts, graph.FormatESM}, {"b.cts", ts, graph.FormatLegacy}},
			rule:  RuleLegacyModuleSystem,
			bad:   []string{"b.cts"},
		},
		{
			name:  "MixedModuleSystems",
			files: []fixture{{"a.js", js, graph.FormatMixed}},
			rule:  RuleLegacyModuleSystem,
			bad:   []string{"a.js"},
		},
		{
			name: "UnsupportedBeatsMixed",
			files: []fixture{
				{"a.ts", ts, graph.FormatESM},
				{"b.js", js, graph.FormatLegacy},
				{"c.json", graph.CategoryUnsupported, graph.FormatNone},
			},
			rule: RuleUnsupportedExtension,
			bad:  []string{"c.json"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewValidator(true).Validate(chainResult(tc.files...))
			if tc.rule == "" {
				require.NoError(t, err)
				assert.True(t, res.OK())
				assert.Equal(t, len(tc.files), res.Evaluated)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeFormat))
			assert.Contains(t, err.Error(), string(tc.rule))
			require.Len(t, res.Violations, 1)
			assert.Equal(t, tc.rule, res.Violations[0].Rule)
			assert.Equal(t, tc.bad, res.Violations[0].Files)
		})
	}
}

func TestValidate_NonStrictCollectsEveryViolation(t *testing.T) {
	res, err := NewValidator(false).Validate(chainResult(
		fixture{"a.ts", graph.CategoryTypeScript, graph.FormatESM},
		fixture{"b.js", graph.CategoryJavaScript, graph.FormatLegacy},
		fixture{"c.css", graph.CategoryUnsupported, graph.FormatNone},
	))
	require.NoError(t, err)
	require.Len(t, res.Violations, 3)
	assert.Equal(t, RuleUnsupportedExtension, res.Violations[0].Rule)
	assert.Equal(t, RuleMixedExtensions, res.Violations[1].Rule)
	assert.Equal(t, RuleLegacyModuleSystem, res.Violations[2].Rule)
	assert.Equal(t, graph.CategoryUnsupported, res.Family)
}

func TestValidate_ReportsImportChain(t *testing.T) {
	res, err := NewValidator(true).Validate(chainResult(
		fixture{"main.ts", graph.CategoryTypeScript, graph.FormatESM},
		fixture{"lib.ts", graph.CategoryTypeScript, graph.FormatESM},
		fixture{"old.cts", graph.CategoryTypeScript, graph.FormatLegacy},
	))
	require.Error(t, err)
	assert.Equal(t, []string{"main.ts", "lib.ts", "old.cts"}, res.Violations[0].Chains["old.cts"])
}

func TestValidate_Family(t *testing.T) {
	res, err := NewValidator(true).Validate(chainResult(fixture{"a.mjs", graph.CategoryJavaScript, graph.FormatNone}))
	require.NoError(t, err)
	assert.Equal(t, graph.CategoryJavaScript, res.Family)
}
