package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jittakal/kafeventsink/internal/insert"
	"github.com/jittakal/kafeventsink/internal/kafka"
	"github.com/jittakal/kafeventsink/internal/sink"
	"github.com/jittakal/kafeventsink/internal/storage"
)

// Metrics backs every component's collector interface.
var (
	_ insert.MetricsCollector  = (*Metrics)(nil)
	_ kafka.MetricsCollector   = (*Metrics)(nil)
	_ kafka.DLQMetrics         = (*Metrics)(nil)
	_ sink.MetricsCollector    = (*Metrics)(nil)
	_ storage.MetricsCollector = (*Metrics)(nil)
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic registering metrics twice on one registry")
		}
	}()
	NewMetrics(registry)
}

func TestMetrics_Consumer(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncMessagesConsumed("events", 0)
	metrics.IncMessagesConsumed("events", 0)
	metrics.IncMessagesConsumed("events", 1)
	metrics.IncOffsetCommits("events", 0, "success")
	metrics.IncRebalances("group")
	metrics.ObserveRebalanceDuration("group", 1.5)
	metrics.ObserveCommitLatency("events", 0, 0.01)
	metrics.SetPartitionsAssigned("events", 3)

	if got := testutil.ToFloat64(metrics.MessagesConsumed.WithLabelValues("events", "0")); got != 2 {
		t.Errorf("messages consumed events/0 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.PartitionsAssigned.WithLabelValues("events")); got != 3 {
		t.Errorf("partitions assigned = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(metrics.MessagesConsumed); got != 2 {
		t.Errorf("messages consumed series = %d, want 2", got)
	}
}

func TestMetrics_Insert(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncBatchesInserted("events", "binary", "success")
	metrics.IncBatchesInserted("events", "text", "error")
	metrics.AddRowsWritten("events", 100)
	metrics.AddRowsWritten("events", 50)
	metrics.ObserveInsertDuration("events", "binary", 0.2)
	metrics.ObserveInsertBytes("events", 4096)
	metrics.IncValidationFailures("events", "type_mismatch")
	metrics.IncInsertRetries("events")
	metrics.SetCatalogTables(4)
	metrics.IncCatalogReloads("success")

	if got := testutil.ToFloat64(metrics.RowsWritten.WithLabelValues("events")); got != 150 {
		t.Errorf("rows written = %v, want 150", got)
	}
	if got := testutil.ToFloat64(metrics.BatchesInserted.WithLabelValues("events", "binary", "success")); got != 1 {
		t.Errorf("binary successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CatalogTables); got != 4 {
		t.Errorf("catalog tables = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.ValidationFailures.WithLabelValues("events", "type_mismatch")); got != 1 {
		t.Errorf("validation failures = %v, want 1", got)
	}
}

func TestMetrics_Processing(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncConversionFailures("events", "json")
	metrics.SetBufferedRecords("events", 2, 10)
	metrics.SetBufferedRecords("events", 2, 0)
	metrics.IncFlushes("policy")
	metrics.IncFlushes("shutdown")
	metrics.AddFailedRecords("events", 3)
	metrics.IncDLQPublished("events", "success")

	if got := testutil.ToFloat64(metrics.BufferedRecords.WithLabelValues("events", "2")); got != 0 {
		t.Errorf("buffered records = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.FailedRecords.WithLabelValues("events")); got != 3 {
		t.Errorf("failed records = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(metrics.Flushes); got != 2 {
		t.Errorf("flush series = %d, want 2", got)
	}
}

func TestMetrics_Archive(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncArchivedBatches("events", "s3", "success")
	metrics.ObserveArchiveFileSize("events", "s3", 2048)
	metrics.ObserveArchiveWriteDuration("s3", 0.3)
	metrics.IncStorageErrors("s3", "upload")
	metrics.IncStorageErrors("gcs", "encode")

	if got := testutil.ToFloat64(metrics.StorageErrors.WithLabelValues("s3", "upload")); got != 1 {
		t.Errorf("storage errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.StorageErrors); got != 2 {
		t.Errorf("storage error series = %d, want 2", got)
	}
}

func TestMetrics_HighVolume(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	for i := 0; i < 10000; i++ {
		metrics.IncMessagesConsumed("events", int32(i%10))
	}
	if got := testutil.CollectAndCount(metrics.MessagesConsumed); got != 10 {
		t.Errorf("series = %d, want 10", got)
	}
}
