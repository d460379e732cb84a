package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/cuongbtq/coursehub/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer sets up the RabbitMQ consumer with QoS and returns the delivery channel
func (w *Worker) setupConsumer(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := w.source.Qos(w.prefetchCount); err != nil {
		return nil, err
	}

	deliveries, err := w.source.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.rabbitMQQueueName),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// startMessageDispatcher hands deliveries to the worker pool. It returns
// false when the delivery channel closes and true when ctx ends.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started", slog.String("worker_id", w.workerID))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return true

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return false
			}

			job, err := parseWatchJob(delivery)
			if err != nil {
				w.logger.Error("Dropping malformed watch message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// malformed messages go to the dead letter exchange, if any
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- job:
				w.logger.Debug("Watch job dispatched to worker pool",
					slog.String("session_id", job.SessionID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return true
			}
		}
	}
}

// parseWatchJob decodes a watch message and validates its identifiers
func parseWatchJob(delivery amqp.Delivery) (*domain.WatchJob, error) {
	var msg session.WatchMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	if _, err := uuid.Parse(msg.SessionID); err != nil {
		return nil, fmt.Errorf("%w: session_id %q is not a UUID", domain.ErrInvalidMessage, msg.SessionID)
	}
	if msg.TaskID == "" {
		return nil, fmt.Errorf("%w: task_id is required", domain.ErrInvalidMessage)
	}

	return &domain.WatchJob{
		SessionID: msg.SessionID,
		TaskID:    msg.TaskID,
		Attempt:   domain.DeliveryAttempt(delivery),
		Delivery:  delivery,
	}, nil
}
