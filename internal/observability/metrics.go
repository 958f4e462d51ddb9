package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Processing metrics
	ConversionFailures *prometheus.CounterVec
	BufferedRecords    *prometheus.GaugeVec
	Flushes            *prometheus.CounterVec
	FailedRecords      *prometheus.CounterVec
	DLQPublished       *prometheus.CounterVec

	// Insert metrics
	BatchesInserted    *prometheus.CounterVec
	RowsWritten        *prometheus.CounterVec
	InsertDuration     *prometheus.HistogramVec
	InsertBytes        *prometheus.HistogramVec
	ValidationFailures *prometheus.CounterVec
	InsertRetries      *prometheus.CounterVec
	CatalogTables      prometheus.Gauge
	CatalogReloads     *prometheus.CounterVec

	// Archive metrics
	ArchivedBatches      *prometheus.CounterVec
	ArchiveFileSize      *prometheus.HistogramVec
	ArchiveWriteDuration *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		// Processing metrics
		ConversionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_conversion_failures_total",
				Help: "Total number of messages that could not be converted to records",
			},
			[]string{"topic", "format"},
		),
		BufferedRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sink_buffered_records",
				Help: "Current number of records waiting in a partition buffer",
			},
			[]string{"topic", "partition"},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_flushes_total",
				Help: "Total number of buffer flushes by trigger",
			},
			[]string{"trigger"},
		),
		FailedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_failed_records_total",
				Help: "Total number of records given up on after a permanent insert failure",
			},
			[]string{"table"},
		),
		DLQPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_dlq_published_total",
				Help: "Total number of messages published to dead letter topics",
			},
			[]string{"topic", "status"},
		),

		// Insert metrics
		BatchesInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickhouse_batches_inserted_total",
				Help: "Total number of insert batches by wire path and outcome",
			},
			[]string{"table", "path", "status"},
		),
		RowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickhouse_rows_written_total",
				Help: "Total number of rows ClickHouse reported as written",
			},
			[]string{"table"},
		),
		InsertDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clickhouse_insert_duration_seconds",
				Help:    "Duration of streaming inserts including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table", "path"},
		),
		InsertBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clickhouse_insert_bytes",
				Help:    "Size of insert request bodies as sent",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"table"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickhouse_validation_failures_total",
				Help: "Total number of batches rejected before or during encoding",
			},
			[]string{"table", "kind"},
		),
		InsertRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickhouse_insert_retries_total",
				Help: "Total number of insert retries after retryable failures",
			},
			[]string{"table"},
		),
		CatalogTables: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "clickhouse_catalog_tables",
				Help: "Number of tables in the current catalog snapshot",
			},
		),
		CatalogReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickhouse_catalog_reloads_total",
				Help: "Total number of catalog reload attempts",
			},
			[]string{"status"},
		),

		// Archive metrics
		ArchivedBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_batches_total",
				Help: "Total number of failed batches written to archive storage",
			},
			[]string{"table", "backend", "status"},
		),
		ArchiveFileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_file_size_bytes",
				Help:    "Size of archive files written",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"table", "backend"},
		),
		ArchiveWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_write_duration_seconds",
				Help:    "Duration of archive writes including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),
	}
}

func partitionLabel(partition int32) string {
	return strconv.FormatInt(int64(partition), 10)
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncConversionFailures counts a message that failed conversion.
func (m *Metrics) IncConversionFailures(topic, format string) {
	m.ConversionFailures.WithLabelValues(topic, format).Inc()
}

// SetBufferedRecords sets the buffered record gauge of a partition.
func (m *Metrics) SetBufferedRecords(topic string, partition int32, count float64) {
	m.BufferedRecords.WithLabelValues(topic, partitionLabel(partition)).Set(count)
}

// IncFlushes counts a buffer flush.
func (m *Metrics) IncFlushes(trigger string) {
	m.Flushes.WithLabelValues(trigger).Inc()
}

// AddFailedRecords counts records given up on.
func (m *Metrics) AddFailedRecords(table string, count float64) {
	m.FailedRecords.WithLabelValues(table).Add(count)
}

// IncDLQPublished counts a dead letter publish.
func (m *Metrics) IncDLQPublished(topic, status string) {
	m.DLQPublished.WithLabelValues(topic, status).Inc()
}

// IncBatchesInserted counts an insert batch outcome.
func (m *Metrics) IncBatchesInserted(table, path, status string) {
	m.BatchesInserted.WithLabelValues(table, path, status).Inc()
}

// AddRowsWritten adds server-reported written rows.
func (m *Metrics) AddRowsWritten(table string, rows float64) {
	m.RowsWritten.WithLabelValues(table).Add(rows)
}

// ObserveInsertDuration observes insert duration.
func (m *Metrics) ObserveInsertDuration(table, path string, duration float64) {
	m.InsertDuration.WithLabelValues(table, path).Observe(duration)
}

// ObserveInsertBytes observes the insert body size.
func (m *Metrics) ObserveInsertBytes(table string, size float64) {
	m.InsertBytes.WithLabelValues(table).Observe(size)
}

// IncValidationFailures counts a rejected batch by error kind.
func (m *Metrics) IncValidationFailures(table, kind string) {
	m.ValidationFailures.WithLabelValues(table, kind).Inc()
}

// IncInsertRetries counts an insert retry.
func (m *Metrics) IncInsertRetries(table string) {
	m.InsertRetries.WithLabelValues(table).Inc()
}

// SetCatalogTables sets the catalog size gauge.
func (m *Metrics) SetCatalogTables(count float64) {
	m.CatalogTables.Set(count)
}

// IncCatalogReloads counts a catalog reload attempt.
func (m *Metrics) IncCatalogReloads(status string) {
	m.CatalogReloads.WithLabelValues(status).Inc()
}

// IncArchivedBatches counts an archive write outcome.
func (m *Metrics) IncArchivedBatches(table, backend, status string) {
	m.ArchivedBatches.WithLabelValues(table, backend, status).Inc()
}

// ObserveArchiveFileSize observes archive file size.
func (m *Metrics) ObserveArchiveFileSize(table, backend string, size float64) {
	m.ArchiveFileSize.WithLabelValues(table, backend).Observe(size)
}

// ObserveArchiveWriteDuration observes archive write duration.
func (m *Metrics) ObserveArchiveWriteDuration(backend string, duration float64) {
	m.ArchiveWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
