package symbols

import (
	"context"
	"testing"

	"nyein/internal/core/errors"
	"nyein/internal/engine/graph"
	"nyein/internal/engine/parser"
	"nyein/internal/engine/strip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func module(rel, body string) *strip.Module {
	return &strip.Module{
		Node: &graph.SourceNode{Path: "/project/" + rel, RelativePath: rel},
		Body: body,
	}
}

func resolve(t *testing.T, rename bool, modules ...*strip.Module) (*Result, error) {
	t.Helper()
	p, err := parser.NewDefaultParser()
	require.NoError(t, err)
	return NewResolver(p, rename).Resolve(context.Background(), modules)
}

func TestResolve_StrictCollision(t *testing.T) {
	res, err := resolve(t, false,
		module("a.ts", "const x = 1;\nconsole.log(x);"),
		module("b.ts", "const x = 2;"),
	)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCollision))
	assert.Contains(t, err.Error(), "x (variable): a.ts, b.ts")

	require.Len(t, res.Collisions, 1)
	assert.Equal(t, Record{Name: "x", Kind: KindVariable, Files: []string{"/project/a.ts", "/project/b.ts"}, Lines: []int{1, 1}}, res.Collisions[0])
}

func TestResolve_RenameRewritesEachFile(t *testing.T) {
	res, err := resolve(t, true,
		module("a.ts", "const x = 1;\nconsole.log(x);"),
		module("b.ts", "const x = 2;\nconst y = x + 1;"),
	)
	require.NoError(t, err)
	assert.Equal(t, "const $1x = 1;\nconsole.log($1x);", res.Bodies[0])
	assert.Equal(t, "const $2x = 2;\nconst y = $2x + 1;", res.Bodies[1])
	assert.Equal(t, "$2x", res.Renames["/project/b.ts"]["x"])
}

func TestResolve_RequireAliasesNeverCollide(t *testing.T) {
	res, err := resolve(t, false,
		module("a.js", "const fs = require('fs');\nfs.readFileSync('a');"),
		module("b.js", "const fs = require('fs');"),
	)
	require.NoError(t, err)
	assert.Empty(t, res.Collisions)
	assert.Equal(t, "const fs = require('fs');\nfs.readFileSync('a');", res.Bodies[0])
}

func TestResolve_RenameIsScopeAware(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "ShadowingParameterAndLocal",
			body: "const x = 1;\nfunction f(x: number) { return x; }\nfunction g() { const x = 2; return x; }\nconsole.log(x);",
			want: "const $1x = 1;\nfunction f(x: number) { return x; }\nfunction g() { const x = 2; return x; }\nconsole.log($1x);",
		},
		{
			name: "ArrowParameter",
			body: "const x = 1;\nconst h = (x) => x * 2;\nh(x);",
			want: "const $1x = 1;\nconst h = (x) => x * 2;\nh($1x);",
		},
		{
			name: "ShorthandProperty",
			body: "const x = 1;\nconst o = { x };",
			want: "const $1x = 1;\nconst o = { x: $1x };",
		},
		{
			name: "PropertyNamesUntouched",
			body: "const x = 1;\nobj.x = x;\nconst o = { x: 2 };",
			want: "const $1x = 1;\nobj.x = $1x;\nconst o = { x: 2 };",
		},
		{
			name: "CatchAndLoopBindings",
			body: "let x = 1;\ntry { x++; } catch (x) { x; }\nfor (const x of [1]) { x; }",
			want: "let $1x = 1;\ntry { $1x++; } catch (x) { x; }\nfor (const x of [1]) { x; }",
		},
		{
			name: "VarInNestedBlockShadowsWholeFunction",
			body: "const x = 1;\nfunction f(c) { if (c) { var x = 2; } return x; }\nx;",
			want: "const $1x = 1;\nfunction f(c) { if (c) { var x = 2; } return x; }\n$1x;",
		},
		{
			name: "ForVarShadowsAfterLoop",
			body: "const x = 1;\nfunction g() { for (var x = 0; x < 2; x++) {} return x; }\nx;",
			want: "const $1x = 1;\nfunction g() { for (var x = 0; x < 2; x++) {} return x; }\n$1x;",
		},
		{
			name: "ForInVarShadowsAfterLoop",
			body: "const x = 1;\nfunction k(o) { for (var x in o) {} return x; }\nx;",
			want: "const $1x = 1;\nfunction k(o) { for (var x in o) {} return x; }\n$1x;",
		},
		{
			name: "VarInNestedFunctionStaysThere",
			body: "const x = 1;\nfunction f() { function g() { var x = 2; } return x; }",
			want: "const $1x = 1;\nfunction f() { function g() { var x = 2; } return $1x; }",
		},
		{
			name: "BlockVarAtTopLevelIsTheTopLevelBinding",
			body: "var x = 1;\nif (x) { var x = 2; }\nx;",
			want: "var $1x = 1;\nif ($1x) { var $1x = 2; }\n$1x;",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := resolve(t, true, module("a.ts", tc.body), module("b.ts", "var x = 0;"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Bodies[0])
			assert.Equal(t, "var $2x = 0;", res.Bodies[1])
		})
	}
}

func TestResolve_TypeReferencesFollowClassRename(t *testing.T) {
	res, err := resolve(t, true,
		module("a.ts", "class Box {}\nlet b: Box = new Box();"),
		module("b.ts", "class Box {}"),
	)
	require.NoError(t, err)
	assert.Equal(t, "class $1Box {}\nlet b: $1Box = new $1Box();", res.Bodies[0])
	assert.Equal(t, KindClass, res.Collisions[0].Kind)
}

func TestResolve_LinksImportBindings(t *testing.T) {
	b := module("b.ts", "const x = 1;\nfunction f() {}\nfunction __default_b_abc123() {}")
	b.Exports = []strip.ExportBinding{{Local: "x", Exported: "x"}, {Local: "f", Exported: "f"}}
	b.DefaultName = "__default_b_abc123"
	c := module("c.ts", "const x = 2;")
	a := module("a.ts", "console.log(renamed, x, ns.f(), run());")
	a.ImportBindings = []strip.ImportBinding{
		{Local: "renamed", Imported: "f", Specifier: "./b", Target: b.Path()},
		{Local: "x", Imported: "x", Specifier: "./b", Target: b.Path()},
		{Local: "ns", Imported: strip.ImportNamespace, Specifier: "./b", Target: b.Path()},
		{Local: "run", Imported: strip.ImportDefault, Specifier: "./b", Target: b.Path()},
	}

	res, err := resolve(t, true, b, c, a)
	require.NoError(t, err)
	assert.Equal(t, "const $1x = 1;\nfunction f() {}\nfunction __default_b_abc123() {}", res.Bodies[0])
	assert.Equal(t, "const $2x = 2;", res.Bodies[1])
	assert.Equal(t, "console.log(f, $1x, f(), __default_b_abc123());", res.Bodies[2])
	assert.Empty(t, res.Notes)
}

func TestResolve_FollowsReExportChains(t *testing.T) {
	c := module("c.ts", "const deep = 1;")
	c.Exports = []strip.ExportBinding{{Local: "deep", Exported: "deep"}}
	b := module("b.ts", "")
	b.ReExports = []strip.ReExport{{Exported: "viaB", Imported: "deep", Specifier: "./c", Target: c.Path()}}
	b.StarExports = []strip.StarExport{{Specifier: "./c", Target: c.Path()}}
	a := module("a.ts", "use(viaB, deep);")
	a.ImportBindings = []strip.ImportBinding{
		{Local: "viaB", Imported: "viaB", Specifier: "./b", Target: b.Path()},
		{Local: "deep", Imported: "deep", Specifier: "./b", Target: b.Path()},
	}

	res, err := resolve(t, false, c, b, a)
	require.NoError(t, err)
	assert.Equal(t, "use(deep, deep);", res.Bodies[2])
}

func TestResolve_ReportsUnlinkedImports(t *testing.T) {
	a := module("a.ts", "use(gone);")
	a.ImportBindings = []strip.ImportBinding{{Local: "gone", Imported: "gone", Specifier: "./gone"}}

	res, err := resolve(t, false, a)
	require.NoError(t, err)
	assert.Equal(t, "use(gone);", res.Bodies[0])
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0], "gone from ./gone")
}

func TestEntryExports(t *testing.T) {
	b := module("b.ts", "const q = 1;\nconst r = 2;")
	b.Exports = []strip.ExportBinding{{Local: "q", Exported: "q"}, {Local: "r", Exported: "r"}}
	a := module("a.ts", "const y = 1;\nfunction main() {}")
	a.Exports = []strip.ExportBinding{{Local: "y", Exported: "z"}}
	a.ReExports = []strip.ReExport{{Exported: "q", Imported: "q", Specifier: "./b", Target: b.Path()}}
	a.StarExports = []strip.StarExport{{Specifier: "./b", Target: b.Path()}}
	a.DefaultName = "main"

	res, err := resolve(t, false, b, a)
	require.NoError(t, err)
	names, def := res.EntryExports(a.Path())
	assert.Equal(t, []ExportName{
		{Local: "y", Exported: "z"},
		{Local: "q", Exported: "q"},
		{Local: "r", Exported: "r"},
	}, names)
	assert.Equal(t, "main", def)
}
