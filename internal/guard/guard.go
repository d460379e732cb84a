// Package guard prevents the same submission from running twice at once.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/cuongbtq/coursehub/internal/domain"
)

// ReleaseFunc gives a held key back. It is safe to call more than once.
type ReleaseFunc func()

// Guard hands out exclusive holds on submission keys
type Guard interface {
	// Acquire returns domain.ErrSubmissionInFlight when key is already held
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// Key derives a guard key. An explicit idempotency key wins; otherwise the
// key is a digest of the submission kind, file name and size.
func Key(idempotencyKey, kind, filename string, size int64) string {
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		return kind + ":" + k
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", kind, filename, size)))
	return kind + ":" + hex.EncodeToString(sum[:16])
}

func inFlight(key string) error {
	return domain.NewError(domain.ErrSubmissionInFlight, domain.MsgSubmissionRunning, fmt.Errorf("key %s is held", key))
}

// MemoryGuard holds keys in process memory
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an in-process guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire implements Guard
func (g *MemoryGuard) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return nil, inFlight(key)
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held
func (g *MemoryGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}
