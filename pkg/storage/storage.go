// Package storage defines interfaces for archiving batches that could not be
// inserted.
//
// Archived batches land in object storage (S3, Azure Blob, GCS) or on the
// local filesystem, partitioned Hive-style by table, day and partition.
package storage

import (
	"context"
	"time"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Writer writes failed records to an archive backend.
type Writer interface {
	// Write encodes records into a new file under dir and returns the
	// number of bytes written.
	Write(ctx context.Context, records []event.FailedRecord, dir string) (int64, error)

	// Close releases the backend client.
	Close() error
}

// Router determines archive directories for failed batches.
type Router interface {
	// Route returns the directory for a table partition at the given time.
	Route(table string, partition int32, at time.Time) string
}
