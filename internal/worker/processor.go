package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	core "github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/worker/domain"
)

const storeWriteTimeout = 5 * time.Second

// processJob polls the task of one watch message to a terminal state and
// persists every update. A nil return ACKs the message.
func (w *Worker) processJob(ctx context.Context, job *domain.WatchJob) error {
	sess, err := w.store.Get(ctx, job.SessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, job.SessionID)
		}
		return w.retryable(job, fmt.Errorf("failed to load session: %w", err))
	}

	if sess.TaskID != job.TaskID {
		return fmt.Errorf("%w: message %s, session %s", domain.ErrTaskMismatch, job.TaskID, sess.TaskID)
	}

	logger := w.logger.With(
		slog.String("session_id", job.SessionID),
		slog.String("task_id", job.TaskID),
	)

	if sess.Terminal() {
		logger.Info("Session already finished, skipping",
			slog.String("state", sess.State),
		)
		return nil
	}

	var (
		pollCtx context.Context
		cancel  context.CancelFunc
	)
	if w.pollBudget > 0 {
		deadline := sess.CreatedAt.Add(w.pollBudget)
		if !time.Now().Before(deadline) {
			return w.expire(ctx, job, sess.Handle(), logger)
		}
		pollCtx, cancel = context.WithDeadline(ctx, deadline)
	} else {
		pollCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var (
		userCanceled bool
		persistErr   error
		last         = sess.Handle()
	)

	handle, err := w.runner.Run(pollCtx, job.TaskID, func(h core.TaskHandle) {
		// CANCELED is written by whoever asked for it; a shutdown leaves the session POLLING
		if h.State == core.PollStateCanceled {
			return
		}
		last = h

		writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		defer cancelWrite()

		if err := w.store.Update(writeCtx, job.SessionID, h); err != nil {
			logger.Error("Failed to persist poll state",
				slog.String("state", h.State),
				slog.String("error", err.Error()),
			)
			if h.Terminal() {
				persistErr = err
			}
			return
		}

		if h.Terminal() {
			return
		}

		current, err := w.store.Get(writeCtx, job.SessionID)
		if err != nil {
			logger.Warn("Failed to check session for cancellation",
				slog.String("error", err.Error()),
			)
			return
		}
		if current.State == core.PollStateCanceled {
			logger.Info("Session canceled, stopping poll")
			userCanceled = true
			cancel()
		}
	})

	switch {
	case ctx.Err() != nil:
		logger.Info("Worker shutting down, returning watch job to the queue")
		return domain.NewRetryableError(fmt.Errorf("poll interrupted: %w", ctx.Err()))

	case userCanceled && errors.Is(err, context.Canceled):
		return nil

	case errors.Is(err, context.DeadlineExceeded) && errors.Is(pollCtx.Err(), context.DeadlineExceeded):
		return w.expire(ctx, job, last, logger)

	case persistErr != nil:
		return w.retryable(job, fmt.Errorf("failed to persist terminal state: %w", persistErr))

	case err != nil:
		// the terminal state is already stored; the message itself succeeded
		logger.Warn("Poll session ended with error",
			slog.String("state", handle.State),
			slog.String("error", core.Message(err)),
		)
		return nil
	}

	logger.Info("Poll session finished",
		slog.String("state", handle.State),
		slog.Int("progress", handle.Progress),
		slog.Int("total", handle.Total),
	)
	return nil
}

// expire stores a session that ran out of poll budget as FAILED
func (w *Worker) expire(ctx context.Context, job *domain.WatchJob, h core.TaskHandle, logger *slog.Logger) error {
	h.State = core.PollStateFailed
	h.ErrorDetail = core.MsgPollTimeout

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	if err := w.store.Update(writeCtx, job.SessionID, h); err != nil {
		return w.retryable(job, fmt.Errorf("failed to persist poll timeout: %w", err))
	}

	logger.Warn("Session poll budget exhausted",
		slog.Duration("poll_budget", w.pollBudget),
		slog.Int("progress", h.Progress),
		slog.Int("total", h.Total),
	)
	return nil
}

// retryable wraps err for a requeue unless the message was redelivered too often
func (w *Worker) retryable(job *domain.WatchJob, err error) error {
	if w.maxRedeliveries > 0 && job.Attempt > w.maxRedeliveries {
		w.logger.Warn("Watch job exceeded max redeliveries",
			slog.String("session_id", job.SessionID),
			slog.Int("attempt", job.Attempt),
			slog.Int("max_redeliveries", w.maxRedeliveries),
		)
		return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, err)
	}
	return domain.NewRetryableError(err)
}
