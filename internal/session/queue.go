package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// WatchMessage asks a task watcher to poll a session
type WatchMessage struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

// Publisher sends a message to the watch queue. *rabbitmq.Client satisfies it.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// QueueDispatcher hands poll sessions to the worker service over RabbitMQ
type QueueDispatcher struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// NewQueueDispatcher creates a dispatcher that publishes watch messages
func NewQueueDispatcher(store Store, publisher Publisher, logger *slog.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch implements Dispatcher
func (d *QueueDispatcher) Dispatch(ctx context.Context, sess *Session) error {
	body, err := json.Marshal(WatchMessage{SessionID: sess.ID, TaskID: sess.TaskID})
	if err != nil {
		return fmt.Errorf("failed to marshal watch message: %w", err)
	}

	if err := d.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish watch message: %w", err)
	}

	d.logger.Info("Poll session handed to task watcher",
		slog.String("session_id", sess.ID),
		slog.String("task_id", sess.TaskID),
	)

	return nil
}

// Cancel marks the session CANCELED. The watcher notices on its next poll.
func (d *QueueDispatcher) Cancel(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := d.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return cancelInStore(ctx, d.store, sess)
}

// Shutdown is a no-op; polls run in the worker service
func (d *QueueDispatcher) Shutdown(ctx context.Context) error {
	return nil
}
