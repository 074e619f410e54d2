package profile

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SuffixGenerator produces the random part of a fresh display name.
// Implemented by UUIDSuffix (production) and FixedSuffix (tests).
type SuffixGenerator interface {
	Generate() string
}

// UUIDSuffix derives a short suffix from a random UUIDv4.
//
// The suffix is four lowercase hex characters, which keeps the default
// display name inside the display-name pattern.
//
// Thread-safety: UUIDSuffix is stateless and safe for concurrent use.
type UUIDSuffix struct{}

// Generate returns four random hex characters.
func (UUIDSuffix) Generate() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:4]
}

// FixedSuffix returns predetermined suffixes in order, then repeats the last.
//
// Thread-safety: FixedSuffix is safe for concurrent use via internal mutex.
type FixedSuffix struct {
	mu       sync.Mutex
	suffixes []string
	idx      int
}

// NewFixedSuffix creates a generator that returns suffixes in order.
func NewFixedSuffix(suffixes ...string) *FixedSuffix {
	if len(suffixes) == 0 {
		suffixes = []string{"0000"}
	}
	return &FixedSuffix{suffixes: suffixes}
}

// Generate returns the next predetermined suffix.
func (g *FixedSuffix) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	suffix := g.suffixes[g.idx]
	if g.idx < len(g.suffixes)-1 {
		g.idx++
	}
	return suffix
}
