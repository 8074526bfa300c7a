package flows

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints ids for synthesized flow nodes.
type IDGenerator interface {
	NextID() string
}

// UUIDGenerator mints time-sortable UUIDv7 node ids. This is the
// production generator; sortability makes generated documents easier to
// read when debugging a failing run.
//
// Stateless and safe for concurrent use.
type UUIDGenerator struct{}

// NextID returns a new hyphenated UUIDv7.
func (UUIDGenerator) NextID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator mints "<prefix>-1", "<prefix>-2", ... so tests and
// golden snapshots get stable node ids.
//
// Safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a deterministic generator. An empty
// prefix defaults to "node".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "node"
	}
	return &SequentialGenerator{prefix: prefix}
}

// NextID returns the next id in sequence, starting at "<prefix>-1".
func (g *SequentialGenerator) NextID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
