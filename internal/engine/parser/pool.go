package parser

import (
	"fmt"
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool recycles tree-sitter parsers bound to one grammar. Every merge
// parses each file at least twice (graph discovery, then symbol scanning of
// the stripped body) and npm builds run entries concurrently, so parsers are
// leased from here instead of allocated per file.
//
//	sp, err := pool.Get()
//	if err != nil { ... }
//	defer pool.Put(sp)
type ParserPool struct {
	lang   *sitter.Language
	pool   sync.Pool
	leased atomic.Int64
	// bind attaches the grammar; it fails when the grammar was generated for
	// an ABI the linked runtime cannot load.
	bind func(*sitter.Parser) error
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool.New = func() any { return sitter.NewParser() }
	p.bind = func(sp *sitter.Parser) error { return sp.SetLanguage(lang) }
	return p
}

// Get leases a parser set to the pool's grammar.
func (p *ParserPool) Get() (*sitter.Parser, error) {
	sp := p.pool.Get().(*sitter.Parser)
	if err := p.bind(sp); err != nil {
		sp.Close()
		return nil, fmt.Errorf("load grammar into parser: %w", err)
	}
	p.leased.Add(1)
	return sp, nil
}

// Put resets sp and returns it to the pool. Callers must not use sp after.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leased.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// Stats returns the number of parsers currently leased.
func (p *ParserPool) Stats() int {
	return int(p.leased.Load())
}
