package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
)

// Store persists sessions
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Update writes the poll state of h. Terminal sessions are not changed.
	Update(ctx context.Context, id string, h domain.TaskHandle) error
	// List returns up to PageSize+1 sessions, newest first
	List(ctx context.Context, filter Filter) ([]Session, error)
}

// Filter narrows a List call
type Filter struct {
	Kind     string
	State    string
	PageSize int
	Cursor   *Cursor
}

// Cursor points at the last session of the previous page
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty string yields nil.
func DecodeCursor(cursorStr string) (*Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &Cursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ID:        parts[1],
	}, nil
}

// EncodeCursor renders c as an opaque token
func EncodeCursor(c *Cursor) string {
	cs := fmt.Sprintf("%d|%s", c.CreatedAt.UnixNano(), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

// Page trims a List result to pageSize and returns the cursor of the next page
func Page(sessions []Session, pageSize int) ([]Session, string) {
	if len(sessions) <= pageSize {
		return sessions, ""
	}
	sessions = sessions[:pageSize]
	last := sessions[len(sessions)-1]
	return sessions, EncodeCursor(&Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
}

func notFound(id string) error {
	return domain.NewError(domain.ErrNotFound, "session not found", fmt.Errorf("session %s", id))
}
