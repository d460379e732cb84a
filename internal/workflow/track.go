package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/filestore"
	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/google/uuid"
)

// StoreUploader uploads into a filestore. The gateway uses it in place of a
// remote /api/upload call.
type StoreUploader struct {
	Store filestore.Store
}

// Upload implements Uploader
func (u StoreUploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	path, err := u.Store.Save(ctx, filename, content)
	if err != nil {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err)
	}
	return path, nil
}

// Tracker records submissions as sessions and hands them to a poller
type Tracker struct {
	store      session.Store
	dispatcher session.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewTracker creates a tracker
func NewTracker(store session.Store, dispatcher session.Dispatcher, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Track creates a POLLING session for sub and starts watching it
func (t *Tracker) Track(ctx context.Context, sub *Submission, idempotencyKey string) (*session.Session, error) {
	// Postgres keeps microseconds; truncate so cursors round-trip
	now := t.now().UTC().Truncate(time.Microsecond)

	sess := &session.Session{
		ID:             uuid.NewString(),
		Kind:           sub.Kind,
		TaskID:         sub.TaskID,
		State:          domain.PollStatePolling,
		Total:          sub.Records,
		InputPath:      sub.InputPath,
		OutputPath:     sub.OutputPath,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := t.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	if err := t.dispatcher.Dispatch(ctx, sess); err != nil {
		t.logger.Error("Failed to start poll session",
			slog.String("session_id", sess.ID),
			slog.String("task_id", sess.TaskID),
			slog.Any("error", err),
		)

		failed := sess.Handle()
		failed.State = domain.PollStateFailed
		failed.ErrorDetail = domain.MsgPollFailed
		if updateErr := t.store.Update(ctx, sess.ID, failed); updateErr != nil {
			t.logger.Error("Failed to mark session failed",
				slog.String("session_id", sess.ID),
				slog.Any("error", updateErr),
			)
		}
		return nil, domain.NewError(domain.ErrPoll, domain.MsgPollFailed, fmt.Errorf("failed to dispatch session: %w", err))
	}

	return sess, nil
}
