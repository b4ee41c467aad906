package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"nyein/internal/core/app"
	"nyein/internal/core/ports"
	"nyein/internal/engine/compiler"
	"nyein/internal/engine/graph"
	"nyein/internal/engine/symbols"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
)

// Warnings renders import cycles and skipped specifiers. Nothing is written
// when there are none.
func Warnings(w io.Writer, entry string, warn graph.Warnings) {
	if warn.Empty() {
		return
	}
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("warnings for %s", entry)))
	for _, c := range warn.Cycles {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("cycle"), c.String())
	}
	for _, s := range warn.Skipped {
		fmt.Fprintf(w, "  %s %s imports %q (%s)\n", warnStyle.Render("skipped"), s.Importer, s.Specifier, s.Reason)
	}
}

// Source resolves a node path to its display name and content.
type Source func(path string) (name string, content []byte)

// Collisions lists each colliding name with its owners and, when renamed,
// the name each owner received. Declaring lines are shown under each owner.
func Collisions(w io.Writer, collisions []symbols.Record, renames map[string]map[string]string, src Source) {
	if len(collisions) == 0 {
		return
	}
	title := "duplicate top-level declarations"
	style := errorStyle
	if len(renames) > 0 {
		title = "renamed duplicate declarations"
		style = warnStyle
	}
	fmt.Fprintln(w, style.Render(title))
	for _, rec := range collisions {
		fmt.Fprintf(w, "  %s (%s)\n", rec.Name, rec.Kind)
		for i, file := range rec.Files {
			name, content := src(file)
			line := "    " + name
			if renamed, ok := renames[file][rec.Name]; ok {
				line += " -> " + renamed
			}
			fmt.Fprintln(w, line)
			for _, l := range DeclarationContext(content, rec.Line(i)) {
				fmt.Fprintln(w, statusStyle.Render("    "+l))
			}
		}
	}
}

func Diagnostics(w io.Writer, diags []ports.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	errs := len(compiler.Errors(diags))
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d compiler diagnostic(s), %d error(s)", len(diags), errs)))
	for _, d := range diags {
		style := warnStyle
		if d.Category == compiler.CategoryError {
			style = errorStyle
		}
		fmt.Fprintf(w, "  %s %s\n", style.Render(d.Category), compiler.Format(d))
	}
}

// Diff renders changed lines only, with one line of context on either side.
func Diff(w io.Writer, lines []app.DiffLine) {
	keep := make([]bool, len(lines))
	for i, l := range lines {
		if l.Op == app.DiffEqual {
			continue
		}
		for j := max(i-1, 0); j <= min(i+1, len(lines)-1); j++ {
			keep[j] = true
		}
	}
	gap := false
	for i, l := range lines {
		if !keep[i] {
			gap = true
			continue
		}
		if gap {
			fmt.Fprintln(w, statusStyle.Render("  ..."))
			gap = false
		}
		switch l.Op {
		case app.DiffInsert:
			fmt.Fprintln(w, insertStyle.Render("+ "+l.Text))
		case app.DiffDelete:
			fmt.Fprintln(w, deleteStyle.Render("- "+l.Text))
		default:
			fmt.Fprintln(w, "  "+l.Text)
		}
	}
}

// Bundle renders everything a merge produced that the user should see.
func Bundle(w io.Writer, res *app.BundleResult) {
	if res == nil {
		return
	}
	if res.Graph != nil {
		Warnings(w, res.Entry, res.Graph.Warnings)
	}
	for _, v := range res.Format.Violations {
		fmt.Fprintf(w, "%s %s\n", warnStyle.Render("format"), v.Message())
	}
	for _, note := range res.Notes {
		fmt.Fprintf(w, "%s %s\n", statusStyle.Render("note"), note)
	}
	if res.Symbols != nil {
		Collisions(w, res.Symbols.Collisions, res.Symbols.Renames, graphSource(res))
	}
	Diagnostics(w, res.Diagnostics)

	switch {
	case res.Written:
		fmt.Fprintf(w, "%s %s (%d files, %s)\n", successStyle.Render("merged"), res.OutFile, fileCount(res), round(res.Duration))
	case res.UpToDate:
		fmt.Fprintf(w, "%s %s\n", successStyle.Render("up to date"), res.OutFile)
	case res.Diff != nil:
		added, removed := app.DiffStats(res.Diff)
		fmt.Fprintf(w, "%s %s (+%d -%d)\n", errorStyle.Render("out of date"), res.OutFile, added, removed)
		Diff(w, res.Diff)
	}
}

func Dts(w io.Writer, res *app.DtsResult) {
	if res == nil {
		return
	}
	Bundle(w, res.Bundle)
	Diagnostics(w, res.Diagnostics)
	for _, f := range res.Files {
		fmt.Fprintf(w, "%s %s\n", successStyle.Render("declarations"), f)
	}
}

func Npm(w io.Writer, res *app.NpmResult) {
	if res == nil {
		return
	}
	for _, e := range res.Entries {
		Bundle(w, e.Bundle)
		if e.Emit == nil {
			continue
		}
		Diagnostics(w, e.Emit.CJS.Diagnostics)
		Diagnostics(w, e.Emit.ESM.Diagnostics)
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("exports[%q]", e.Emit.Entry.Key)))
		fmt.Fprintf(w, "  types   %s\n  import  %s\n  require %s\n", e.Emit.Entry.Types, e.Emit.Entry.Import, e.Emit.Entry.Require)
	}
	if len(res.Update.Exports) > 0 {
		fmt.Fprintf(w, "%s %d export(s) in %s\n", successStyle.Render("package.json updated"), len(res.Update.Exports), round(res.Duration))
	}
}

// Error renders a fatal error on its own line.
func Error(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render("error"), strings.TrimSpace(err.Error()))
}

// graphSource looks paths up in the graph the merge was built from.
func graphSource(res *app.BundleResult) Source {
	return func(path string) (string, []byte) {
		if res.Graph != nil {
			if n := res.Graph.Graph.Node(path); n != nil {
				return n.RelativePath, n.Content
			}
		}
		return path, nil
	}
}

func fileCount(res *app.BundleResult) int {
	if res.Graph == nil {
		return 0
	}
	return len(res.Graph.Order)
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
