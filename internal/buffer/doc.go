// Package buffer provides thread-safe batching of converted records per Kafka
// partition.
//
// Each buffered [event.Entry] keeps the converted record next to the raw
// message and its commit callback, so a flushed batch can be inserted,
// dead-lettered and committed without going back to Kafka.
//
// # PartitionBuffer
//
// PartitionBuffer holds entries for a single partition:
//
//	buf := buffer.New(partitionID, maxSizeBytes, maxRecords)
//
//	if err := buf.Add(entry); err != nil {
//	    if errors.Is(err, errors.ErrBufferFull) {
//	        entries := buf.Drain()
//	        flush(entries)
//	    }
//	}
//
// A zero limit disables it. An entry larger than the byte limit is accepted
// into an empty buffer so that it can be flushed alone.
//
// # Manager
//
// Manager creates partition buffers on demand:
//
//	manager := buffer.NewManager(maxSizeBytes, maxRecords)
//	buf := manager.GetOrCreate(partitionID)
//
// Partitions lists every partition seen so far, sorted, which the flush
// ticker and shutdown path walk.
//
// # Flush policy
//
// CompositePolicy decides when a buffer is due:
//
//	policy := buffer.NewPolicy(buffer.PolicyConfig{
//	    MaxRecords: 10000,
//	    MaxBytes:   16 * 1024 * 1024,
//	    MaxAge:     5 * time.Second,
//	})
//	if policy.ShouldFlush(buf.Stats()) {
//	    flush(buf.Drain())
//	}
//
// Any met criterion triggers a flush. Empty buffers never flush.
//
// # Thread Safety
//
//   - Add(), Drain(), Reset() take the write lock
//   - Stats(), IsEmpty() take the read lock
//   - Manager.GetOrCreate() uses double-checked locking
package buffer
