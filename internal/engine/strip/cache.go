package strip

import (
	"fmt"

	"nyein/internal/engine/graph"
	"nyein/internal/shared/observability"
	"nyein/internal/shared/util"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keeps stripped modules keyed by path and content hash so watch-mode
// rebuilds only re-strip files that changed. Resolved targets depend on the
// file system rather than the file's bytes, so they are recomputed on every
// hit. A nil *Cache disables caching.
type Cache struct {
	entries *lru.Cache[string, *Module]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, *Module](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func cacheKey(node *graph.SourceNode) string {
	return fmt.Sprintf("%s#%016x", node.Path, util.ContentHash(node.Content))
}

func (c *Cache) get(node *graph.SourceNode, resolve func(spec string) string) (*Module, bool) {
	if c == nil {
		return nil, false
	}
	mod, ok := c.entries.Get(cacheKey(node))
	if !ok {
		observability.StripCacheMisses.Inc()
		return nil, false
	}
	observability.StripCacheHits.Inc()
	return mod.retarget(node, resolve), true
}

func (c *Cache) put(node *graph.SourceNode, mod *Module) {
	if c == nil {
		return
	}
	c.entries.Add(cacheKey(node), mod)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *Cache) Purge() {
	if c != nil {
		c.entries.Purge()
	}
}

// retarget copies m onto node, resolving every relative specifier again.
func (m *Module) retarget(node *graph.SourceNode, resolve func(spec string) string) *Module {
	clone := *m
	clone.Node = node
	clone.ImportBindings = make([]ImportBinding, len(m.ImportBindings))
	for i, b := range m.ImportBindings {
		b.Target = resolve(b.Specifier)
		clone.ImportBindings[i] = b
	}
	clone.ReExports = make([]ReExport, len(m.ReExports))
	for i, re := range m.ReExports {
		re.Target = resolve(re.Specifier)
		clone.ReExports[i] = re
	}
	clone.StarExports = make([]StarExport, len(m.StarExports))
	for i, star := range m.StarExports {
		star.Target = resolve(star.Specifier)
		clone.StarExports[i] = star
	}
	return &clone
}
