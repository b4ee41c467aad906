// Package manifest rewrites the package.json fields nyein owns while keeping
// every other field and the key order as the user wrote them. The result is
// laid out the way npm writes manifests.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const defaultModuleType = "commonjs"

// Owned fields; Update replaces these and nothing else.
const (
	FieldMain    = "main"
	FieldModule  = "module"
	FieldTypes   = "types"
	FieldExports = "exports"
)

// npmLayout mirrors JSON.stringify(manifest, null, 2): every array and
// object broken across lines, keys in document order.
var npmLayout = &pretty.Options{Indent: "  ", SortKeys: false}

// escapeKey makes an object key usable as a single sjson path component.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parse(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("malformed JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("manifest must be a JSON object")
	}
	return data, nil
}

// Store is a file-backed ports.ManifestStore.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ ports.ManifestStore = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.AddContext(domain.Wrap(err, domain.CodeNotFound, "package manifest not found"), domain.CtxPath, s.path)
		}
		return nil, domain.Wrap(err, domain.CodeInternal, "read package manifest")
	}
	doc, err := parse(data)
	if err != nil {
		return nil, domain.AddContext(domain.Wrap(err, domain.CodeValidationError, "invalid package manifest"), domain.CtxPath, s.path)
	}
	return doc, nil
}

// ModuleType reports the manifest "type", defaulting to commonjs as Node does.
func (s *Store) ModuleType(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	typ := gjson.GetBytes(doc, "type")
	if typ.Type != gjson.String || strings.TrimSpace(typ.Str) == "" {
		return defaultModuleType, nil
	}
	return typ.Str, nil
}

// Update rewrites main, module, types and exports. Empty entry points are
// removed from the manifest rather than written as empty strings.
func (s *Store) Update(ctx context.Context, update ports.ManifestUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for _, kv := range []struct{ key, value string }{
		{FieldMain, update.Main},
		{FieldModule, update.Module},
		{FieldTypes, update.Types},
	} {
		if kv.value == "" {
			doc, err = sjson.DeleteBytes(doc, kv.key)
		} else {
			doc, err = sjson.SetBytes(doc, kv.key, kv.value)
		}
		if err != nil {
			return domain.AddContext(domain.Wrap(err, domain.CodeInternal, "edit manifest field"), domain.CtxPath, s.path)
		}
	}

	exports, err := ExportMap(update.Exports)
	if err != nil {
		return domain.Wrap(err, domain.CodeInternal, "encode export map")
	}
	if doc, err = sjson.SetRawBytes(doc, FieldExports, exports); err != nil {
		return domain.Wrap(err, domain.CodeInternal, "edit manifest exports")
	}

	data := pretty.PrettyOptions(doc, npmLayout)
	data = append(bytes.TrimRight(data, "\n"), '\n')
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.Wrap(err, domain.CodeInternal, "write package manifest")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return domain.Wrap(err, domain.CodeInternal, "replace package manifest")
	}
	return nil
}

type conditions struct {
	Types   string `json:"types"`
	Import  string `json:"import"`
	Require string `json:"require"`
}

// ExportMap encodes entries as an "exports" object in the given order.
func ExportMap(entries []ports.ExportEntry) (json.RawMessage, error) {
	out := []byte("{}")
	for _, e := range entries {
		raw, err := json.Marshal(conditions{Types: e.Types, Import: e.Import, Require: e.Require})
		if err != nil {
			return nil, err
		}
		if out, err = sjson.SetRawBytes(out, escapeKey(e.Key), raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}
