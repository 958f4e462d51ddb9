// Package buffer implements per-partition batching of converted records.
package buffer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/buffer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ buffer.Buffer  = (*PartitionBuffer)(nil)
	_ buffer.Manager = (*Manager)(nil)
)

// PartitionBuffer buffers entries for a single Kafka partition.
// It provides thread-safe buffering with size limits and record count limits.
// The buffer tracks first and last write times for age-based flushing.
type PartitionBuffer struct {
	partitionID    event.PartitionID
	entries        []event.Entry
	maxSizeBytes   int64
	maxRecords     int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	now            func() time.Time
	mu             sync.RWMutex
}

// New creates a new partition buffer. A zero limit disables that limit.
func New(partitionID event.PartitionID, maxSizeBytes int64, maxRecords int) *PartitionBuffer {
	return &PartitionBuffer{
		partitionID:  partitionID,
		entries:      make([]event.Entry, 0, capacity(maxRecords)),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
		now:          time.Now,
	}
}

// PartitionID returns the partition the buffer belongs to.
func (b *PartitionBuffer) PartitionID() event.PartitionID {
	return b.partitionID
}

// Add adds an entry to the buffer. An entry larger than the byte limit is
// still accepted into an empty buffer so it can be flushed on its own.
func (b *PartitionBuffer) Add(entry event.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entrySize := int64(EstimateSize(entry))

	if b.maxRecords > 0 && len(b.entries) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	if b.maxSizeBytes > 0 && len(b.entries) > 0 && b.currentSize+entrySize > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.entries = append(b.entries, entry)
	b.currentSize += entrySize

	now := b.now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all entries from the buffer.
// The returned slice is owned by the caller.
func (b *PartitionBuffer) Drain() []event.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries
	b.reset()
	return entries
}

// Stats returns current buffer statistics.
func (b *PartitionBuffer) Stats() event.BatchStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return event.BatchStats{
		RecordCount:    len(b.entries),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *PartitionBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *PartitionBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *PartitionBuffer) reset() {
	b.entries = make([]event.Entry, 0, capacity(b.maxRecords))
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

func capacity(maxRecords int) int {
	if maxRecords > 0 && maxRecords <= 4096 {
		return maxRecords
	}
	return 64
}

// EstimateSize estimates the size of an entry in bytes from its raw message.
func EstimateSize(entry event.Entry) int {
	meta := entry.Message.Metadata
	size := len(entry.Message.Value) + len(meta.Key) + len(meta.Topic)
	for k, v := range meta.Headers {
		size += len(k) + len(v)
	}
	return size
}

// Manager manages buffers for multiple Kafka partitions.
// It provides thread-safe access to partition-specific buffers, creating them on-demand.
// Uses double-checked locking for efficient concurrent access.
type Manager struct {
	buffers      map[event.PartitionID]*PartitionBuffer
	maxSizeBytes int64
	maxRecords   int
	mu           sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxRecords int) *Manager {
	return &Manager{
		buffers:      make(map[event.PartitionID]*PartitionBuffer),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// GetOrCreate returns a buffer for the partition, creating if needed.
func (m *Manager) GetOrCreate(partitionID event.PartitionID) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[partitionID]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, exists := m.buffers[partitionID]; exists {
		return buf
	}

	buf = New(partitionID, m.maxSizeBytes, m.maxRecords)
	m.buffers[partitionID] = buf
	return buf
}

// Partitions returns the partitions with a buffer, sorted by topic and
// partition number.
func (m *Manager) Partitions() []event.PartitionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]event.PartitionID, 0, len(m.buffers))
	for id := range m.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Topic != ids[j].Topic {
			return ids[i].Topic < ids[j].Topic
		}
		return ids[i].Partition < ids[j].Partition
	})
	return ids
}
