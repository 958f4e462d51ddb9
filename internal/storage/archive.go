package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// MetricsCollector defines metrics operations for archive storage.
type MetricsCollector interface {
	IncArchivedBatches(table, backend, status string)
	ObserveArchiveFileSize(table, backend string, size float64)
	ObserveArchiveWriteDuration(backend string, duration float64)
	IncStorageErrors(backend, operation string)
}

// fileNamer generates failed_YYYYMMDD_HHMMSS_NNN.<ext> names. NNN counts
// files created within the same second.
type fileNamer struct {
	mu       sync.Mutex
	now      func() time.Time
	last     string
	sequence int
}

func newFileNamer() *fileNamer {
	return &fileNamer{now: time.Now}
}

func (n *fileNamer) next(ext string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	timestamp := n.now().UTC().Format("20060102_150405")
	if timestamp == n.last {
		n.sequence++
	} else {
		n.sequence = 1
		n.last = timestamp
	}
	return fmt.Sprintf("failed_%s_%03d%s", timestamp, n.sequence, ext)
}

// objectKey strips "scheme://bucket/" from dir and appends name. A dir
// without the scheme is used as a key prefix as-is.
func objectKey(dir, scheme, name string) string {
	key := dir
	if prefix := scheme + "://"; strings.HasPrefix(dir, prefix) {
		parts := strings.SplitN(strings.TrimPrefix(dir, prefix), "/", 2)
		key = ""
		if len(parts) == 2 {
			key = parts[1]
		}
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return strings.TrimPrefix(key+name, "/")
}

// tableOf returns the table label for metrics.
func tableOf(records []event.FailedRecord) string {
	if len(records) == 0 || records[0].Table == "" {
		return "unknown"
	}
	return records[0].Table
}

func storageError(metrics MetricsCollector, backend, operation, path string, err error) error {
	metrics.IncStorageErrors(backend, operation)
	return &errors.StorageError{Operation: operation, Path: path, Err: err}
}

type nopMetrics struct{}

func (nopMetrics) IncArchivedBatches(string, string, string)      {}
func (nopMetrics) ObserveArchiveFileSize(string, string, float64) {}
func (nopMetrics) ObserveArchiveWriteDuration(string, float64)    {}
func (nopMetrics) IncStorageErrors(string, string)                {}
