package parser

import (
	"errors"
	"strings"
	"sync"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

func tsLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
}

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(tsLanguage())

	sp, err := pool.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := pool.Stats(); got != 1 {
		t.Fatalf("expected 1 leased parser, got %d", got)
	}
	pool.Put(sp)
	if got := pool.Stats(); got != 0 {
		t.Fatalf("expected no leased parsers after Put, got %d", got)
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(tsLanguage())
	pool.Put(nil)
}

func TestParserPool_ParsesValidTypeScript(t *testing.T) {
	pool := NewParserPool(tsLanguage())

	sp, err := pool.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer pool.Put(sp)

	tree := sp.Parse([]byte("export const a: number = 1;\n"), nil)
	if tree == nil {
		t.Fatal("expected non-nil parse tree")
	}
	defer tree.Close()

	if root := tree.RootNode(); root == nil || root.HasError() {
		t.Fatal("expected error-free root node")
	}
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(tsLanguage())

	const goroutines = 20
	const iters = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	src := []byte("function run(): void {}\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				sp, err := pool.Get()
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				tree := sp.Parse(src, nil)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
				} else {
					tree.Close()
				}
				pool.Put(sp)
			}
		}()
	}

	wg.Wait()
}

func TestParserPool_LanguageSetAfterReset(t *testing.T) {
	pool := NewParserPool(tsLanguage())

	sp, err := pool.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	sp.Reset()
	pool.Put(sp)

	sp2, err := pool.Get()
	if err != nil {
		t.Fatalf("get after reset: %v", err)
	}
	defer pool.Put(sp2)

	tree := sp2.Parse([]byte("let ok = true;\n"), nil)
	if tree == nil {
		t.Fatal("parser should still parse after a reset")
	}
	defer tree.Close()
}

func TestParserPool_GrammarLoadFailure(t *testing.T) {
	pool := NewParserPool(tsLanguage())
	incompatible := errors.New("incompatible language version 99")
	pool.bind = func(*sitter.Parser) error { return incompatible }

	sp, err := pool.Get()
	if err == nil {
		t.Fatal("expected grammar load error")
	}
	if sp != nil {
		t.Fatal("no parser should be leased on failure")
	}
	if !errors.Is(err, incompatible) || !strings.Contains(err.Error(), "load grammar into parser") {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pool.Stats(); got != 0 {
		t.Fatalf("failed lease must not count, got %d", got)
	}
}
