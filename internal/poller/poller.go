// Package poller drives a backend task from POLLING to a terminal state.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/domain"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 900
)

// StatusFetcher fetches the status of one backend task
type StatusFetcher interface {
	TaskStatus(ctx context.Context, taskID string) (*backend.TaskStatus, error)
}

// Config controls the polling cadence
type Config struct {
	Interval time.Duration
	// MaxAttempts caps the number of status requests. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// Poller issues status requests on a fixed interval
type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// New creates a poller
func New(fetcher StatusFetcher, cfg Config, logger *slog.Logger) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Poller{
		fetcher:     fetcher,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Run polls taskID until it completes, fails, times out or ctx is canceled.
// The first request is sent immediately. onUpdate, when set, receives the
// handle after every response and once more on the terminal transition.
//
// The returned handle is always terminal. The error is nil only for COMPLETED.
func (p *Poller) Run(ctx context.Context, taskID string, onUpdate func(domain.TaskHandle)) (domain.TaskHandle, error) {
	handle := domain.NewTaskHandle(taskID)
	notify := func() {
		if onUpdate != nil {
			onUpdate(handle)
		}
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			handle.State = domain.PollStateCanceled
			notify()
			p.logger.Info("Polling canceled",
				slog.String("task_id", taskID),
				slog.Int("attempts", attempt-1),
			)
			return handle, ctx.Err()
		case <-timer.C:
		}

		status, err := p.fetcher.TaskStatus(ctx, taskID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				handle.State = domain.PollStateCanceled
				notify()
				return handle, ctxErr
			}

			// a failed poll ends the session, it is not retried
			handle.State = domain.PollStateFailed
			handle.ErrorDetail = domain.MsgPollFailed
			if errors.Is(err, domain.ErrPoll) {
				handle.ErrorDetail = domain.Message(err)
			}
			notify()
			p.logger.Error("Task status check failed",
				slog.String("task_id", taskID),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			if errors.Is(err, domain.ErrPoll) {
				return handle, err
			}
			return handle, domain.NewError(domain.ErrPoll, domain.MsgPollFailed, err)
		}

		handle.Status = status.Status
		handle.Progress = status.Progress
		handle.Total = status.Total

		switch status.Status {
		case domain.BackendStatusCompleted:
			handle.State = domain.PollStateCompleted
			notify()
			p.logger.Info("Task completed",
				slog.String("task_id", taskID),
				slog.Int("progress", handle.Progress),
				slog.Int("total", handle.Total),
			)
			return handle, nil

		case domain.BackendStatusFailed:
			handle.State = domain.PollStateFailed
			handle.ErrorDetail = status.Error
			if handle.ErrorDetail == "" {
				handle.ErrorDetail = domain.MsgTaskFailed
			}
			notify()
			p.logger.Warn("Task failed",
				slog.String("task_id", taskID),
				slog.String("error", handle.ErrorDetail),
			)
			return handle, domain.NewError(domain.ErrTaskFailure, handle.ErrorDetail, nil)
		}

		if attempt >= p.maxAttempts {
			handle.State = domain.PollStateFailed
			handle.ErrorDetail = domain.MsgPollTimeout
			notify()
			p.logger.Warn("Task polling timed out",
				slog.String("task_id", taskID),
				slog.Int("attempts", attempt),
			)
			return handle, domain.NewError(domain.ErrPollTimeout, domain.MsgPollTimeout, nil)
		}

		notify()
		p.logger.Debug("Task still running",
			slog.String("task_id", taskID),
			slog.String("status", status.Status),
			slog.Int("progress", handle.Progress),
			slog.Int("total", handle.Total),
		)

		timer.Reset(p.interval)
	}
}
