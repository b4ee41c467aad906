package graph

import (
	"os"
	"path/filepath"
	"strings"
)

// swapExtensions maps emitted-JS specifiers back to their TypeScript sources,
// the way `import "./a.js"` addresses a.ts under node16 resolution.
var swapExtensions = map[string]string{
	".js":  ".ts",
	".mjs": ".mts",
	".cjs": ".cts",
}

// SpecifierResolver turns relative module specifiers into file paths.
type SpecifierResolver struct {
	stat func(string) (os.FileInfo, error)
}

func NewSpecifierResolver() *SpecifierResolver {
	return &SpecifierResolver{stat: os.Stat}
}

// NormalizeSpecifier strips quotes and a "node:" scheme.
func NormalizeSpecifier(spec string) string {
	spec = strings.TrimSpace(spec)
	spec = strings.Trim(spec, "\"'`")
	return strings.TrimPrefix(spec, "node:")
}

// Resolve finds the file a relative specifier written in importer refers to.
// Candidates are tried in order: the exact path, the TypeScript twin of a
// .js/.mjs/.cjs path, each known extension appended, then index.<ext>.
// Extensions of the importer's own family are preferred.
func (r *SpecifierResolver) Resolve(importer, spec string) (string, bool) {
	spec = NormalizeSpecifier(spec)
	var base string
	if filepath.IsAbs(spec) {
		base = filepath.Clean(spec)
	} else {
		base = filepath.Join(filepath.Dir(importer), filepath.FromSlash(spec))
	}

	for _, candidate := range r.candidates(importer, base) {
		if r.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (r *SpecifierResolver) candidates(importer, base string) []string {
	exts := extensionPreference(importer)
	out := make([]string, 0, 2+2*len(exts))
	out = append(out, base)

	ext := strings.ToLower(filepath.Ext(base))
	if twin, ok := swapExtensions[ext]; ok {
		out = append(out, strings.TrimSuffix(base, filepath.Ext(base))+twin)
	}
	for _, e := range exts {
		out = append(out, base+e)
	}
	for _, e := range exts {
		out = append(out, filepath.Join(base, "index"+e))
	}
	return out
}

func extensionPreference(importer string) []string {
	if CategoryOf(importer) == CategoryJavaScript {
		return append(append([]string(nil), javaScriptExtensions...), typeScriptExtensions...)
	}
	return append(append([]string(nil), typeScriptExtensions...), javaScriptExtensions...)
}

func (r *SpecifierResolver) isFile(path string) bool {
	info, err := r.stat(path)
	return err == nil && !info.IsDir()
}
