// Package insert routes record batches to a wire format and streams them to
// ClickHouse, encoding and sending concurrently.
package insert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jittakal/kafeventsink/internal/clickhouse"
	internalencoder "github.com/jittakal/kafeventsink/internal/encoder"
	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/internal/pipe"
	"github.com/jittakal/kafeventsink/internal/validator"
	"github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

const tracerName = "github.com/jittakal/kafeventsink/internal/insert"

// Destination opens streaming insert requests.
type Destination interface {
	NewInsert(ctx context.Context, req clickhouse.InsertRequest) (*clickhouse.Insert, error)
}

// TableLoader supplies the column contracts of the destination tables.
type TableLoader interface {
	FetchTables(ctx context.Context) ([]table.Table, error)
}

// MetricsCollector defines metrics operations for inserts.
type MetricsCollector interface {
	IncBatchesInserted(table, path, status string)
	AddRowsWritten(table string, rows float64)
	ObserveInsertDuration(table, path string, duration float64)
	ObserveInsertBytes(table string, size float64)
	IncValidationFailures(table, kind string)
	SetCatalogTables(count float64)
	IncCatalogReloads(status string)
}

// Config contains dispatcher configuration.
type Config struct {
	// Quorum is sent as insert_quorum when positive.
	Quorum int
	Policy validator.Policy
	// PipeSize is the encoder-side buffer between encoding and sending.
	PipeSize int
	// Settings are extra per-request settings; they override the defaults.
	Settings map[string]string
	// TopicToTable maps topics to table names. Unmapped topics use their
	// own name.
	TopicToTable map[string]string
}

// Dispatcher is the single entry point for inserting a batch. It is safe for
// concurrent use; the table catalog is an immutable snapshot swapped only by
// Reload.
type Dispatcher struct {
	dest      Destination
	loader    TableLoader
	catalog   atomic.Pointer[table.Catalog]
	validator *validator.SchemaValidator
	binary    encoder.RowEncoder
	text      encoder.RowEncoder
	cfg       Config
	logger    *slog.Logger
	metrics   MetricsCollector
	tracer    trace.Tracer
}

// NewDispatcher creates a dispatcher. The catalog is empty until Reload.
func NewDispatcher(
	dest Destination,
	loader TableLoader,
	cfg Config,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Dispatcher {
	if cfg.Policy == "" {
		cfg.Policy = validator.PolicyFirst
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	d := &Dispatcher{
		dest:      dest,
		loader:    loader,
		validator: validator.NewSchemaValidator(),
		binary:    mustRowEncoder(encoder.FormatRowBinary),
		text:      mustRowEncoder(encoder.FormatJSONEachRow),
		cfg:       cfg,
		logger:    logger.With("component", "dispatcher"),
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
	}
	d.catalog.Store(table.NewCatalog(nil))
	return d
}

// mustRowEncoder panics on a format the encoder package does not know, which
// only a programming error can cause.
func mustRowEncoder(format encoder.Format) encoder.RowEncoder {
	enc, err := internalencoder.NewRowEncoder(format)
	if err != nil {
		panic(err)
	}
	return enc
}

// Reload fetches the table contracts and swaps in a new catalog snapshot.
// On failure the previous snapshot stays in place.
func (d *Dispatcher) Reload(ctx context.Context) error {
	tables, err := d.loader.FetchTables(ctx)
	if err != nil {
		d.metrics.IncCatalogReloads("error")
		return fmt.Errorf("failed to load tables: %w", err)
	}
	if len(tables) == 0 {
		d.metrics.IncCatalogReloads("error")
		return errors.ErrCatalogEmpty
	}

	cat := table.NewCatalog(tables)
	d.catalog.Store(cat)
	d.metrics.IncCatalogReloads("success")
	d.metrics.SetCatalogTables(float64(cat.Len()))

	d.logger.Info("Table catalog loaded",
		"tables", cat.Len(),
		"names", cat.Names(),
	)
	return nil
}

// Tables returns the current catalog snapshot for diagnostics.
func (d *Dispatcher) Tables() *table.Catalog {
	return d.catalog.Load()
}

// TableName resolves the destination table for a topic.
func (d *Dispatcher) TableName(topic string) string {
	if name, ok := d.cfg.TopicToTable[topic]; ok && name != "" {
		return name
	}
	return topic
}

// Table returns the contract of the table a topic resolves to.
func (d *Dispatcher) Table(topic string) (table.Table, error) {
	name := d.TableName(topic)
	tbl, ok := d.catalog.Load().Lookup(name)
	if !ok {
		return table.Table{}, &errors.TableError{Topic: topic, Table: name}
	}
	return tbl, nil
}

// Insert writes batch to the table its first record's topic resolves to and
// returns the row count the server reports. The batch either succeeds as a
// whole or fails with a typed error; nothing is retried here.
func (d *Dispatcher) Insert(ctx context.Context, batch []event.Record) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	first := &batch[0]
	tbl, err := d.Table(first.Topic)
	if err != nil {
		return 0, err
	}
	path := Route(tbl, firstValue(batch))

	ctx, span := d.tracer.Start(ctx, "insert", trace.WithAttributes(
		attribute.String("db.table", tbl.Name),
		attribute.String("insert.path", path.String()),
		attribute.Int("insert.batch_size", len(batch)),
	))
	defer span.End()

	rows, err := d.insert(ctx, tbl, path, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("insert.written_rows", rows))
	return rows, nil
}

func (d *Dispatcher) insert(ctx context.Context, tbl table.Table, path Path, batch []event.Record) (int64, error) {
	live := 0
	for i := range batch {
		if batch[i].IsTombstone() {
			d.logger.Warn("Skipping record without value",
				"table", tbl.Name,
				"topic", batch[i].Topic,
				"position", batch[i].Position(),
			)
			continue
		}
		live++
	}
	if live == 0 {
		return 0, nil
	}

	if path == PathBinary {
		if err := d.validator.ValidateBatch(tbl, batch, d.cfg.Policy); err != nil {
			d.metrics.IncValidationFailures(tbl.Name, kindLabel(err))
			d.metrics.IncBatchesInserted(tbl.Name, path.String(), "invalid")
			return 0, err
		}
	}

	enc := d.text
	if path == PathBinary {
		enc = d.binary
	}

	start := time.Now()
	ins, err := d.dest.NewInsert(ctx, clickhouse.InsertRequest{
		Table:      tbl.Name,
		Format:     enc.Format(),
		Settings:   d.settings(path),
		RoutingKey: fmt.Sprintf("%s/%d", tbl.Name, batch[0].Kafka.Partition),
	})
	if err != nil {
		d.metrics.IncBatchesInserted(tbl.Name, path.String(), "error")
		return 0, fmt.Errorf("failed to open insert into %s: %w", tbl.Name, err)
	}

	var (
		summary clickhouse.Summary
		encoded int
		sent    countingWriter
	)
	err = pipe.Stream(ctx, d.cfg.PipeSize,
		func(w io.Writer) error {
			sent.w = w
			zw, err := ins.WrapWriter(&sent)
			if err != nil {
				return err
			}
			encoded, err = encodeBody(zw, enc, tbl, batch)
			return err
		},
		func(ctx context.Context, r io.Reader) error {
			var err error
			summary, err = ins.Send(ctx, r)
			return err
		},
	)
	elapsed := time.Since(start)
	d.metrics.ObserveInsertDuration(tbl.Name, path.String(), elapsed.Seconds())

	if err != nil {
		if kind := errors.Kind(err); kind != nil && kind != errors.ErrTransportFailure {
			d.metrics.IncValidationFailures(tbl.Name, kindLabel(err))
		}
		d.metrics.IncBatchesInserted(tbl.Name, path.String(), "error")
		d.logger.Error("Insert failed",
			"table", tbl.Name,
			"path", path.String(),
			"endpoint", ins.Endpoint(),
			"batch_size", len(batch),
			"encoded_rows", encoded,
			"error", err,
		)
		return 0, err
	}

	d.metrics.IncBatchesInserted(tbl.Name, path.String(), "success")
	d.metrics.AddRowsWritten(tbl.Name, float64(summary.WrittenRows))
	d.metrics.ObserveInsertBytes(tbl.Name, float64(sent.n))

	d.logger.Info("Batch inserted",
		"table", tbl.Name,
		"path", path.String(),
		"endpoint", ins.Endpoint(),
		"batch_size", len(batch),
		"encoded_rows", encoded,
		"written_rows", summary.WrittenRows,
		"bytes", sent.n,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return summary.WrittenRows, nil
}

func (d *Dispatcher) settings(path Path) map[string]string {
	s := map[string]string{
		"send_progress_in_http_headers": "1",
	}
	if d.cfg.Quorum > 0 {
		s["insert_quorum"] = strconv.Itoa(d.cfg.Quorum)
	}
	if path == PathText {
		s["input_format_skip_unknown_fields"] = "1"
	}
	for k, v := range d.cfg.Settings {
		s[k] = v
	}
	return s
}

// encodeBody writes batch to w and closes w on every path, so a compressor
// releases its state even when encoding fails.
func encodeBody(w io.WriteCloser, enc encoder.RowEncoder, tbl table.Table, batch []event.Record) (int, error) {
	n, err := enc.EncodeBatch(w, tbl, batch)
	if err != nil {
		_ = w.Close()
		return n, err
	}
	return n, w.Close()
}

// firstValue returns the first record that is not a tombstone, or the
// first record when every record is one.
func firstValue(batch []event.Record) *event.Record {
	for i := range batch {
		if !batch[i].IsTombstone() {
			return &batch[i]
		}
	}
	return &batch[0]
}

func kindLabel(err error) string {
	switch errors.Kind(err) {
	case errors.ErrMissingRequiredField:
		return "missing_required_field"
	case errors.ErrTypeMismatch:
		return "type_mismatch"
	case errors.ErrUnsupportedConversion:
		return "unsupported_conversion"
	case errors.ErrTableNotFound:
		return "table_not_found"
	default:
		return "other"
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type nopMetrics struct{}

func (nopMetrics) IncBatchesInserted(string, string, string)     {}
func (nopMetrics) AddRowsWritten(string, float64)                {}
func (nopMetrics) ObserveInsertDuration(string, string, float64) {}
func (nopMetrics) ObserveInsertBytes(string, float64)            {}
func (nopMetrics) IncValidationFailures(string, string)          {}
func (nopMetrics) SetCatalogTables(float64)                      {}
func (nopMetrics) IncCatalogReloads(string)                      {}
