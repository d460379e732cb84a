package session

import (
	"context"
	"testing"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		Kind:      KindBulkInference,
		TaskID:    "task-" + id,
		State:     domain.PollStatePolling,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	c := &Cursor{CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.UTC), ID: "9b2f6c1e-0000-4000-8000-000000000001"}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)

	empty, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []string{
		"%%%",
		"bm8tc2VwYXJhdG9y", // "no-separator"
		"YWJjfGlk",         // "abc|id"
		"MTIzfA==",         // "123|"
	}

	for _, raw := range tests {
		_, err := DecodeCursor(raw)
		assert.Error(t, err, raw)
	}
}

func TestPage(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := []Session{
		*newSession("c", base.Add(3*time.Second)),
		*newSession("b", base.Add(2*time.Second)),
		*newSession("a", base.Add(time.Second)),
	}

	page, next := Page(sessions, 3)
	assert.Len(t, page, 3)
	assert.Empty(t, next)

	page, next = Page(sessions, 2)
	assert.Len(t, page, 2)
	require.NotEmpty(t, next)

	c, err := DecodeCursor(next)
	require.NoError(t, err)
	assert.Equal(t, "b", c.ID)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, newSession("a", base)))
	assert.Error(t, store.Create(ctx, newSession("a", base)))

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t.Run("update progress", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, "a", domain.TaskHandle{State: domain.PollStatePolling, Progress: 4, Total: 10}))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 4, got.Progress)
		assert.Equal(t, 10, got.Total)
	})

	t.Run("terminal state is final", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, "a", domain.TaskHandle{State: domain.PollStateCompleted, Progress: 10, Total: 10}))
		require.NoError(t, store.Update(ctx, "a", domain.TaskHandle{State: domain.PollStateCanceled}))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.PollStateCompleted, got.State)
		assert.Equal(t, 10, got.Progress)
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, "missing", domain.TaskHandle{State: domain.PollStatePolling})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returned sessions are copies", func(t *testing.T) {
		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		got.State = "MUTATED"

		again, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.PollStateCompleted, again.State)
	})
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		s := newSession(id, base.Add(time.Duration(i)*time.Second))
		if id == "c" {
			s.Kind = KindDeleteCourses
		}
		require.NoError(t, store.Create(ctx, s))
	}
	// same timestamp as "e", ordered by id
	require.NoError(t, store.Create(ctx, newSession("f", base.Add(4*time.Second))))

	ids := func(ss []Session) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.ID)
		}
		return out
	}

	first, err := store.List(ctx, Filter{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "e", "d"}, ids(first))

	page, next := Page(first, 2)
	assert.Equal(t, []string{"f", "e"}, ids(page))
	cursor, err := DecodeCursor(next)
	require.NoError(t, err)

	second, err := store.List(ctx, Filter{PageSize: 2, Cursor: cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b"}, ids(second))

	deletes, err := store.List(ctx, Filter{PageSize: 10, Kind: KindDeleteCourses})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(deletes))
}
