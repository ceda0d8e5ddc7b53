package state

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces session identifiers for fresh trees.
// Implemented by UUIDv7Generator (production) and FixedTokens (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time, which helps when correlating persisted
// snapshots across sessions.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokens returns predetermined tokens for testing.
//
// This enables deterministic trees and golden snapshot comparison.
// Panics when all tokens are consumed - a fail-fast signal that a test
// created more sessions than it declared.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator that returns tokens in order.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	tok := g.tokens[g.idx]
	g.idx++
	return tok
}
