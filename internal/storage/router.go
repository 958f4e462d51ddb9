// Package storage archives failed batches to the local filesystem or object
// storage.
package storage

import (
	"fmt"
	"path"
	"time"

	"github.com/jittakal/kafeventsink/pkg/storage"
)

var _ storage.Router = (*DefaultRouter)(nil)

// DefaultRouter implements Hive-style partitioning for archive paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new archive router. bucket is empty for the file
// backend.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: basePath,
	}
}

// Route returns the archive directory for a table partition.
// Format: protocol://bucket/basePath/table/dt=YYYY-MM-DD/pid=N/
// The date is taken in UTC from at, the time the batch failed.
func (r *DefaultRouter) Route(table string, partition int32, at time.Time) string {
	dir := path.Join(
		r.basePath,
		table,
		"dt="+at.UTC().Format("2006-01-02"),
		fmt.Sprintf("pid=%d", partition),
	)
	return fmt.Sprintf("%s://%s/%s/", r.protocol, r.bucket, dir)
}
