package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/coursehub/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case job, ok := <-w.jobsChan:
			if !ok {
				return
			}
			w.handle(ctx, workerName, job)
		}
	}
}

// handle processes one job and settles its delivery
func (w *Worker) handle(ctx context.Context, workerName string, job *domain.WatchJob) {
	logger := w.logger.With(
		slog.String("worker_name", workerName),
		slog.String("session_id", job.SessionID),
		slog.String("task_id", job.TaskID),
		slog.Uint64("delivery_tag", job.Delivery.DeliveryTag),
	)
	logger.Info("Worker received watch job", slog.Int("attempt", job.Attempt))

	err := w.processJob(ctx, job)
	if err == nil {
		if ackErr := job.Delivery.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
			return
		}
		logger.Info("Watch job finished")
		return
	}

	requeue := shouldRequeueJob(err)
	logger.Error("Watch job failed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)

	if nackErr := job.Delivery.Nack(false, requeue); nackErr != nil {
		logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
	}
}

// shouldRequeueJob determines if a message should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrTaskMismatch),
		errors.Is(err, domain.ErrMaxRetriesExceeded):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
