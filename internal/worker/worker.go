// Package worker watches backend tasks handed over by the gateway through RabbitMQ.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/cuongbtq/coursehub/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverySource is the consuming side of the watch queue. *rabbitmq.Client satisfies it.
type DeliverySource interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// ErrDeliveriesClosed is returned by Start when the broker closes the delivery channel
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Config holds worker configuration
type Config struct {
	Logger          *slog.Logger
	Source          DeliverySource
	Store           session.Store
	Runner          session.Runner
	WorkerID        string
	QueueName       string
	Concurrency     int
	PrefetchCount   int
	MaxRedeliveries int
	ShutdownTimeout time.Duration
	// PollBudget bounds polling per session, counted from its creation so a
	// requeued watch job does not restart the clock. Zero disables it.
	PollBudget time.Duration
}

// Worker consumes watch messages and polls each task to a terminal state
type Worker struct {
	logger            *slog.Logger
	source            DeliverySource
	store             session.Store
	runner            session.Runner
	workerID          string
	rabbitMQQueueName string
	concurrency       int
	prefetchCount     int
	maxRedeliveries   int
	shutdownTimeout   time.Duration
	pollBudget        time.Duration

	jobsChan chan *domain.WatchJob
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	return &Worker{
		logger:            cfg.Logger,
		source:            cfg.Source,
		store:             cfg.Store,
		runner:            cfg.Runner,
		workerID:          cfg.WorkerID,
		rabbitMQQueueName: cfg.QueueName,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		maxRedeliveries:   cfg.MaxRedeliveries,
		shutdownTimeout:   cfg.ShutdownTimeout,
		pollBudget:        cfg.PollBudget,
		jobsChan:          make(chan *domain.WatchJob),
		stopChan:          make(chan struct{}),
	}
}

// Start consumes the watch queue until ctx is canceled or the broker closes
// the delivery channel. In-flight polls end with ctx and their messages are
// requeued for another worker.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	if !w.startMessageDispatcher(ctx, deliveries) {
		return ErrDeliveriesClosed
	}

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop signals the worker goroutines and waits for them, bounded by the
// shutdown timeout when one is configured.
func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	if w.shutdownTimeout <= 0 {
		<-done
		w.logger.Info("Worker stopped")
		return nil
	}

	select {
	case <-done:
		w.logger.Info("Worker stopped")
		return nil
	case <-time.After(w.shutdownTimeout):
		w.logger.Warn("Worker stop timed out",
			slog.Duration("shutdown_timeout", w.shutdownTimeout),
		)
		return errors.New("timed out waiting for worker goroutines")
	}
}
