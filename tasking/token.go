package tasking

import (
	"sync"

	"github.com/google/uuid"
)

// RunTokenGenerator produces the token identifying one tree run in logs,
// observer events and recorded traces. Implemented by UUIDv7Generator
// (production default) and FixedGenerator (tests).
type RunTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens, which keeps
// recorded runs sortable by start time in trace storage.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out predetermined run tokens, enabling deterministic
// log assertions and golden trace comparison in tests.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator returning tokens in order. It
// panics once the tokens are exhausted, failing fast on a test that starts
// more runs than it declared.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("tasking: FixedGenerator: all run tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
