package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/hexagram/internal/gateway"
)

// IDGenerator produces request IDs for remote calls.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request IDs, so server
// logs order requests by when the client issued them.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined request IDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed, so a test that issues more
// requests than it expected fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// WithRequestIDs sets the generator for request IDs. Defaults to UUIDv7Generator.
func WithRequestIDs(gen IDGenerator) Option {
	return func(e *Engine) {
		e.requestIDs = gen
	}
}

// requestContext tags ctx with a fresh request ID for one remote call.
func (e *Engine) requestContext(ctx context.Context) (context.Context, string) {
	id := e.requestIDs.Generate()
	return gateway.WithRequestID(ctx, id), id
}
