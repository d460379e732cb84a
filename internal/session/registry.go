package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
)

const storeWriteTimeout = 5 * time.Second

// Runner polls one task to a terminal state. *poller.Poller satisfies it.
type Runner interface {
	Run(ctx context.Context, taskID string, onUpdate func(domain.TaskHandle)) (domain.TaskHandle, error)
}

// Dispatcher starts watching a freshly created session
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *Session) error
}

// Manager owns running poll sessions. Registry and QueueDispatcher implement it.
type Manager interface {
	Dispatcher
	Cancel(ctx context.Context, sessionID string) (*Session, error)
	Shutdown(ctx context.Context) error
}

// ErrClosed is returned by Dispatch after Shutdown
var ErrClosed = errors.New("session registry is shut down")

// Registry runs poll sessions in this process. Each session gets its own
// cancel handle; Shutdown cancels all of them and waits.
type Registry struct {
	store  Store
	runner Runner
	logger *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	running map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewRegistry creates an inline registry
func NewRegistry(store Store, runner Runner, logger *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		store:      store,
		runner:     runner,
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
		running:    make(map[string]context.CancelFunc),
	}
}

// Dispatch implements Dispatcher. The poll outlives ctx.
func (r *Registry) Dispatch(ctx context.Context, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.running[sess.ID]; ok {
		return fmt.Errorf("session %s is already being polled", sess.ID)
	}

	runCtx, cancel := context.WithCancel(r.baseCtx)
	r.running[sess.ID] = cancel
	r.wg.Add(1)

	go r.run(runCtx, sess.ID, sess.TaskID)

	return nil
}

func (r *Registry) run(ctx context.Context, sessionID, taskID string) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.running[sessionID]; ok {
			cancel()
			delete(r.running, sessionID)
		}
		r.mu.Unlock()
	}()

	logger := r.logger.With(
		slog.String("session_id", sessionID),
		slog.String("task_id", taskID),
	)
	logger.Info("Poll session started")

	handle, err := r.runner.Run(ctx, taskID, func(h domain.TaskHandle) {
		// terminal writes must land even after cancel
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		defer cancel()

		if err := r.store.Update(writeCtx, sessionID, h); err != nil {
			logger.Error("Failed to persist poll state",
				slog.String("state", h.State),
				slog.Any("error", err),
			)
		}
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Poll session ended with error",
			slog.String("state", handle.State),
			slog.String("error", domain.Message(err)),
		)
		return
	}

	logger.Info("Poll session finished",
		slog.String("state", handle.State),
		slog.Int("progress", handle.Progress),
		slog.Int("total", handle.Total),
	)
}

// Cancel stops polling sessionID and marks it CANCELED unless it already
// reached a terminal state. The current session is returned.
func (r *Registry) Cancel(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	cancel, ok := r.running[sessionID]
	r.mu.Unlock()
	if ok {
		cancel()
	}

	return cancelInStore(ctx, r.store, sess)
}

// Running reports whether sessionID is being polled by this process
func (r *Registry) Running(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[sessionID]
	return ok
}

// Shutdown cancels every poll session and waits for them to persist their
// final state, or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	active := len(r.running)
	r.mu.Unlock()

	r.logger.Info("Stopping poll sessions", slog.Int("active", active))
	r.baseCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("All poll sessions stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for poll sessions: %w", ctx.Err())
	}
}

// cancelInStore writes CANCELED for a session that is not terminal yet
func cancelInStore(ctx context.Context, store Store, sess *Session) (*Session, error) {
	if sess.Terminal() {
		return sess, nil
	}

	h := sess.Handle()
	h.State = domain.PollStateCanceled
	if err := store.Update(ctx, sess.ID, h); err != nil {
		return nil, fmt.Errorf("failed to cancel session: %w", err)
	}

	return store.Get(ctx, sess.ID)
}
