package storage

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	mu               sync.Mutex
	archived         map[string]int
	fileSizes        []float64
	writeDurations   []float64
	storageErrors    int
	lastErrorBackend string
	lastErrorOp      string
}

func newMockMetrics() *mockMetricsCollector {
	return &mockMetricsCollector{archived: make(map[string]int)}
}

func (m *mockMetricsCollector) IncArchivedBatches(table, backend, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived[table+":"+backend+":"+status]++
}

func (m *mockMetricsCollector) ObserveArchiveFileSize(_, _ string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileSizes = append(m.fileSizes, size)
}

func (m *mockMetricsCollector) ObserveArchiveWriteDuration(_ string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeDurations = append(m.writeDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOp = operation
}

func failedBatch(n int) []event.FailedRecord {
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	records := make([]event.FailedRecord, n)
	for i := range records {
		records[i] = event.FailedRecord{
			Message: event.Message{
				Metadata: event.KafkaMetadata{
					Topic:     "events",
					Partition: 1,
					Offset:    int64(i),
					Timestamp: ts,
				},
				Value: []byte(fmt.Sprintf(`{"id":%d}`, i)),
			},
			Table:    "events",
			Reason:   "type mismatch",
			Attempts: 1,
			FailedAt: ts,
		}
	}
	return records
}

func TestFileNamer_Next(t *testing.T) {
	clock := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n := newFileNamer()
	n.now = func() time.Time { return clock }

	got := []string{n.next(".avro"), n.next(".avro")}
	clock = clock.Add(time.Second)
	got = append(got, n.next(".parquet"))

	want := []string{
		"failed_20250102_030405_001.avro",
		"failed_20250102_030405_002.avro",
		"failed_20250102_030406_001.parquet",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("next() #%d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		scheme string
		want   string
	}{
		{"s3 uri", "s3://bucket/failed/events/dt=2025-01-01/pid=0/", "s3", "failed/events/dt=2025-01-01/pid=0/f.avro"},
		{"bucket only", "gs://bucket", "gs", "f.avro"},
		{"plain prefix", "failed/events/", "s3", "failed/events/f.avro"},
		{"prefix without slash", "failed/events", "wasbs", "failed/events/f.avro"},
		{"leading slash", "/failed/", "s3", "failed/f.avro"},
		{"empty", "", "s3", "f.avro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.dir, tt.scheme, "f.avro"); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTableOf(t *testing.T) {
	if got := tableOf(nil); got != "unknown" {
		t.Errorf("tableOf(nil) = %q, want unknown", got)
	}
	if got := tableOf(failedBatch(1)); got != "events" {
		t.Errorf("tableOf() = %q, want events", got)
	}
}

func TestStorageError(t *testing.T) {
	m := newMockMetrics()
	err := storageError(m, "s3", "upload", "key", fmt.Errorf("boom"))

	var se *errors.StorageError
	if !stderrors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T", err)
	}
	if se.Operation != "upload" || se.Path != "key" {
		t.Errorf("StorageError = %+v", se)
	}
	if !errors.IsRetryable(err) {
		t.Error("upload failures should be retryable")
	}
	if m.storageErrors != 1 || m.lastErrorBackend != "s3" || m.lastErrorOp != "upload" {
		t.Errorf("metrics = %+v", m)
	}
}
