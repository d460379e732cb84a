package domain

import amqp "github.com/rabbitmq/amqp091-go"

// WatchJob is one watch message handed to the worker pool
type WatchJob struct {
	SessionID string
	TaskID    string
	// Attempt counts deliveries of the message, starting at 1
	Attempt  int
	Delivery amqp.Delivery
}

// DeliveryAttempt derives the delivery count of d. Quorum queues report it
// in the x-delivery-count header; classic queues only flag redeliveries.
func DeliveryAttempt(d amqp.Delivery) int {
	switch v := d.Headers["x-delivery-count"].(type) {
	case int64:
		return int(v) + 1
	case int32:
		return int(v) + 1
	case int:
		return v + 1
	}
	if d.Redelivered {
		return 2
	}
	return 1
}
