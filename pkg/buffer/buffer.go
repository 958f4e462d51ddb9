// Package buffer defines interfaces for batching converted records.
//
// Buffers collect the records of one Kafka partition until a flush policy
// decides the batch is ready to be inserted.
package buffer

import (
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Buffer holds pending entries of one partition.
// All implementations must be thread-safe.
type Buffer interface {
	// Add adds an entry to the buffer.
	// Returns an error if the buffer is full or capacity would be exceeded.
	Add(entry event.Entry) error

	// Drain removes and returns all entries from the buffer.
	// The buffer is reset after draining.
	Drain() []event.Entry

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() event.BatchStats

	// IsEmpty returns true if the buffer contains no entries.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}

// Manager creates and manages buffers for partitions.
type Manager interface {
	// GetOrCreate returns a buffer for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(partitionID event.PartitionID) Buffer

	// Partitions returns the partitions that currently have a buffer.
	Partitions() []event.PartitionID
}

// FlushPolicy decides when a buffer should be inserted.
type FlushPolicy interface {
	// ShouldFlush returns true if the buffer should be flushed based on stats.
	ShouldFlush(stats event.BatchStats) bool
}
