package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
)

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create implements Store
func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("failed to create session: %s already exists", s.ID)
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

// Get implements Store
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *s
	return &cp, nil
}

// Update implements Store
func (m *MemoryStore) Update(ctx context.Context, id string, h domain.TaskHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return notFound(id)
	}
	if s.Terminal() {
		return nil
	}
	s.Apply(h, m.now().UTC())
	return nil
}

// List implements Store
func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if filter.Kind != "" && s.Kind != filter.Kind {
			continue
		}
		if filter.State != "" && s.State != filter.State {
			continue
		}
		if c := filter.Cursor; c != nil && !before(s, c) {
			continue
		}
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.PageSize > 0 && len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}

// before reports whether s sorts after the cursor in (created_at, id) DESC order
func before(s *Session, c *Cursor) bool {
	if s.CreatedAt.Equal(c.CreatedAt) {
		return s.ID < c.ID
	}
	return s.CreatedAt.Before(c.CreatedAt)
}
