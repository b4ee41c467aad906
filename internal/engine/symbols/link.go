package symbols

import (
	"nyein/internal/engine/strip"
	"nyein/internal/shared/util"
)

// binding is a declaration identified by its file and local name.
type binding struct {
	path  string
	local string
}

// ExportName is one name the merged output can re-export: Local is the
// final top-level binding after renaming.
type ExportName struct {
	Local    string
	Exported string
}

// Linker answers which declaration an import or export refers to once every
// file shares a single scope.
type Linker struct {
	modules map[string]*strip.Module
	renames map[string]map[string]string
}

func NewLinker(modules []*strip.Module, renames map[string]map[string]string) *Linker {
	l := &Linker{
		modules: make(map[string]*strip.Module, len(modules)),
		renames: renames,
	}
	for _, m := range modules {
		l.modules[m.Path()] = m
	}
	return l
}

// FinalName is the name a file's top-level binding carries in the output.
func (l *Linker) FinalName(path, local string) string {
	if n, ok := l.renames[path][local]; ok {
		return n
	}
	return local
}

func (l *Linker) final(b binding) string {
	return l.FinalName(b.path, b.local)
}

func importBinding(m *strip.Module, local string) (strip.ImportBinding, bool) {
	for _, b := range m.ImportBindings {
		if b.Local == local {
			return b, true
		}
	}
	return strip.ImportBinding{}, false
}

// resolveExport follows re-exports and export-of-import chains to the
// declaration behind path's export name.
func (l *Linker) resolveExport(path, name string, seen map[string]bool) (binding, bool) {
	key := path + "#" + name
	if seen[key] {
		return binding{}, false
	}
	seen[key] = true

	m := l.modules[path]
	if m == nil {
		return binding{}, false
	}
	if local, ok := m.ExportedLocal(name); ok {
		if ib, ok := importBinding(m, local); ok {
			return l.resolveImport(ib, seen)
		}
		return binding{path: path, local: local}, true
	}
	for _, re := range m.ReExports {
		if re.Exported == name && re.Imported != strip.ImportNamespace && re.Target != "" {
			return l.resolveExport(re.Target, re.Imported, seen)
		}
	}
	if name == strip.ImportDefault {
		return binding{}, false
	}
	for _, star := range m.StarExports {
		if star.Target == "" {
			continue
		}
		if b, ok := l.resolveExport(star.Target, name, seen); ok {
			return b, true
		}
	}
	return binding{}, false
}

// resolveImport finds the declaration an import binding names. Namespace
// bindings have no single declaration, except a require of a module that
// assigned module.exports, which binds that value.
func (l *Linker) resolveImport(ib strip.ImportBinding, seen map[string]bool) (binding, bool) {
	if ib.Target == "" {
		return binding{}, false
	}
	switch ib.Imported {
	case strip.ImportNamespace:
		if !ib.Require {
			return binding{}, false
		}
		target := l.modules[ib.Target]
		if target == nil || target.DefaultName == "" {
			return binding{}, false
		}
		return l.resolveExport(ib.Target, strip.ImportDefault, seen)
	default:
		return l.resolveExport(ib.Target, ib.Imported, seen)
	}
}

// Members lists the final names behind every export of path, keyed by
// exported name, including the default when there is one.
func (l *Linker) Members(path string) map[string]string {
	out := make(map[string]string)
	l.members(path, out, map[string]bool{}, true)
	return out
}

func (l *Linker) members(path string, out map[string]string, visited map[string]bool, withDefault bool) {
	if visited[path] {
		return
	}
	visited[path] = true
	m := l.modules[path]
	if m == nil {
		return
	}
	add := func(name string) {
		if _, ok := out[name]; ok {
			return
		}
		if b, ok := l.resolveExport(path, name, map[string]bool{}); ok {
			out[name] = l.final(b)
		}
	}
	for _, e := range m.Exports {
		add(e.Exported)
	}
	for _, re := range m.ReExports {
		if re.Imported != strip.ImportNamespace {
			add(re.Exported)
		}
	}
	if withDefault && m.DefaultName != "" {
		add(strip.ImportDefault)
	}
	for _, star := range m.StarExports {
		if star.Target != "" {
			l.members(star.Target, out, visited, false)
		}
	}
}

// bindingRenames maps each relative import binding of m to the final name
// of the declaration it refers to, and each namespace binding to its
// members. Bindings that cannot be followed are reported.
func (l *Linker) bindingRenames(m *strip.Module) (map[string]string, map[string]map[string]string, []string) {
	names := make(map[string]string)
	namespaces := make(map[string]map[string]string)
	var unresolved []string

	for _, ib := range m.ImportBindings {
		if ib.Target == "" {
			unresolved = append(unresolved, ib.Local+" from "+ib.Specifier)
			continue
		}
		if b, ok := l.resolveImport(ib, map[string]bool{}); ok {
			if final := l.final(b); final != ib.Local {
				names[ib.Local] = final
			}
			continue
		}
		if ib.Imported == strip.ImportNamespace {
			namespaces[ib.Local] = l.Members(ib.Target)
			continue
		}
		unresolved = append(unresolved, ib.Local+" from "+ib.Specifier)
	}
	return names, namespaces, unresolved
}

// EntryExports lists the public names of path in declaration order: local
// exports, re-exports, then names reached through export *. The default
// export is returned separately.
func (l *Linker) EntryExports(path string) ([]ExportName, string) {
	m := l.modules[path]
	if m == nil {
		return nil, ""
	}
	var out []ExportName
	seen := map[string]bool{}
	add := func(exported string) {
		if seen[exported] || exported == strip.ImportDefault {
			return
		}
		if b, ok := l.resolveExport(path, exported, map[string]bool{}); ok {
			seen[exported] = true
			out = append(out, ExportName{Local: l.final(b), Exported: exported})
		}
	}
	for _, e := range m.Exports {
		add(e.Exported)
	}
	for _, re := range m.ReExports {
		if re.Imported != strip.ImportNamespace {
			add(re.Exported)
		}
	}
	for _, star := range m.StarExports {
		if star.Target == "" {
			continue
		}
		members := l.Members(star.Target)
		for _, name := range util.SortedStringKeys(members) {
			if name != strip.ImportDefault {
				add(name)
			}
		}
	}

	def := ""
	if b, ok := l.resolveExport(path, strip.ImportDefault, map[string]bool{}); ok {
		def = l.final(b)
	}
	return out, def
}
