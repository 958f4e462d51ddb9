// Package consumer defines interfaces for Kafka message consumption.
//
// This package provides abstractions for consuming raw messages from Kafka,
// managing consumer lifecycle and dead-lettering undeliverable messages.
package consumer

import (
	"context"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Consumer reads messages from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for messages and errors.
	Consume(ctx context.Context) (<-chan *event.ConsumedMessage, <-chan error, error)

	// Commit commits the offset for a partition.
	Commit(ctx context.Context, partition event.PartitionID, offset int64) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes undeliverable messages to a dead letter queue.
type DLQPublisher interface {
	// Publish sends a failed message to the DLQ together with the reason
	// it could not be delivered.
	Publish(ctx context.Context, rec event.FailedRecord) error

	// Close closes the publisher and releases resources.
	Close() error
}
