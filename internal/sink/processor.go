// Package sink drives consumed Kafka messages through conversion, per-partition
// batching and insertion, and settles every message exactly once: committed
// after a successful insert, or dead-lettered and archived after a permanent
// failure.
package sink

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/jittakal/kafeventsink/internal/convert"
	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/buffer"
	"github.com/jittakal/kafeventsink/pkg/consumer"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/storage"
)

// Inserter writes one batch to its destination table.
type Inserter interface {
	Insert(ctx context.Context, batch []event.Record) (int64, error)
	TableName(topic string) string
}

// MetricsCollector defines metrics operations for the processing loop.
type MetricsCollector interface {
	IncConversionFailures(topic, format string)
	SetBufferedRecords(topic string, partition int32, count float64)
	IncFlushes(trigger string)
	AddFailedRecords(table string, count float64)
	IncInsertRetries(table string)
}

// Flush triggers, used as metric labels.
const (
	TriggerPolicy   = "policy"
	TriggerFull     = "full"
	TriggerInterval = "interval"
	TriggerShutdown = "shutdown"
)

// Config contains processor configuration.
type Config struct {
	Retry RetryPolicy
	// FlushInterval is how often aged buffers are checked. Defaults to 1s.
	FlushInterval time.Duration
	// ShutdownTimeout bounds the final flush once the run context ends.
	ShutdownTimeout time.Duration
}

// Dependencies are the collaborators a processor drives. Archive and Router
// may be nil, which disables archiving.
type Dependencies struct {
	Converter convert.Converter
	Inserter  Inserter
	Buffers   buffer.Manager
	Policy    buffer.FlushPolicy
	DLQ       consumer.DLQPublisher
	Archive   storage.Writer
	Router    storage.Router
}

// Processor is the consume-convert-batch-insert loop. Run owns all buffer
// mutation, so a processor serves one message channel.
type Processor struct {
	cfg     Config
	deps    Dependencies
	logger  *slog.Logger
	metrics MetricsCollector
	now     func() time.Time
}

// NewProcessor creates a processor.
func NewProcessor(cfg Config, deps Dependencies, logger *slog.Logger, metrics MetricsCollector) *Processor {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Processor{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With("component", "processor"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Run processes messages until ctx is cancelled or messages is closed, then
// flushes every buffer. It returns nil on a clean stop.
func (p *Processor) Run(ctx context.Context, messages <-chan *event.ConsumedMessage) error {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	p.logger.Info("Processor started",
		"flush_interval", p.cfg.FlushInterval,
		"max_attempts", p.cfg.Retry.MaxAttempts,
		"archive", p.deps.Archive != nil,
	)

	for {
		select {
		case <-ctx.Done():
			p.shutdown(ctx)
			return nil
		case msg, ok := <-messages:
			if !ok {
				p.logger.Info("Message channel closed")
				p.shutdown(ctx)
				return nil
			}
			p.handle(ctx, msg)
		case <-ticker.C:
			p.flushAged(ctx)
		}
	}
}

func (p *Processor) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ShutdownTimeout)
	defer cancel()

	p.logger.Info("Flushing all buffers before shutdown")
	for _, pid := range p.deps.Buffers.Partitions() {
		p.flush(ctx, pid, p.deps.Buffers.GetOrCreate(pid), TriggerShutdown)
	}
}

func (p *Processor) handle(ctx context.Context, msg *event.ConsumedMessage) {
	meta := msg.Metadata
	pid := meta.PartitionID()

	rec, err := p.deps.Converter.Convert(msg.Message)
	if err != nil {
		p.metrics.IncConversionFailures(meta.Topic, string(p.deps.Converter.Format()))
		p.logger.Warn("Failed to convert message",
			"topic", meta.Topic,
			"partition", meta.Partition,
			"offset", meta.Offset,
			"error", err,
		)
		p.deadLetter(ctx, []event.Entry{{Message: msg.Message, CommitFunc: msg.CommitFunc}},
			p.deps.Inserter.TableName(meta.Topic), err, 1)
		p.commit(pid, meta.Offset, msg.CommitFunc)
		return
	}

	entry := event.Entry{
		Record:     rec,
		Message:    msg.Message,
		CommitFunc: msg.CommitFunc,
		ReceivedAt: p.now(),
	}

	buf := p.deps.Buffers.GetOrCreate(pid)
	if err := buf.Add(entry); err != nil {
		if !stderrors.Is(err, errors.ErrBufferFull) {
			p.logger.Error("Failed to buffer record", "partition", pid.String(), "offset", meta.Offset, "error", err)
			return
		}
		p.flush(ctx, pid, buf, TriggerFull)
		if err := buf.Add(entry); err != nil {
			p.logger.Error("Failed to buffer record after flush", "partition", pid.String(), "offset", meta.Offset, "error", err)
			return
		}
	}

	stats := buf.Stats()
	p.metrics.SetBufferedRecords(pid.Topic, pid.Partition, float64(stats.RecordCount))
	if p.deps.Policy.ShouldFlush(stats) {
		p.flush(ctx, pid, buf, TriggerPolicy)
	}
}

func (p *Processor) flushAged(ctx context.Context) {
	for _, pid := range p.deps.Buffers.Partitions() {
		buf := p.deps.Buffers.GetOrCreate(pid)
		if p.deps.Policy.ShouldFlush(buf.Stats()) {
			p.flush(ctx, pid, buf, TriggerInterval)
		}
	}
}

// flush drains buf and settles every drained entry.
func (p *Processor) flush(ctx context.Context, pid event.PartitionID, buf buffer.Buffer, trigger string) {
	entries := buf.Drain()
	p.metrics.SetBufferedRecords(pid.Topic, pid.Partition, 0)
	if len(entries) == 0 {
		return
	}
	p.metrics.IncFlushes(trigger)

	tableName := p.deps.Inserter.TableName(pid.Topic)
	records := make([]event.Record, len(entries))
	for i := range entries {
		records[i] = entries[i].Record
	}
	first := entries[0].Message.Metadata.Offset
	last := entries[len(entries)-1]

	start := p.now()
	var written int64
	attempts, err := p.cfg.Retry.Do(ctx,
		func(ctx context.Context) error {
			var err error
			written, err = p.deps.Inserter.Insert(ctx, records)
			return err
		},
		errors.IsRetryable,
		func(attempt int, delay time.Duration, err error) {
			p.metrics.IncInsertRetries(tableName)
			p.logger.Warn("Insert failed, retrying",
				"table", tableName,
				"partition", pid.String(),
				"attempt", attempt,
				"backoff_ms", delay.Milliseconds(),
				"error", err,
			)
		},
	)

	if err != nil {
		perr := &errors.ProcessingError{
			PartitionID: pid,
			FirstOffset: first,
			LastOffset:  last.Message.Metadata.Offset,
			Table:       tableName,
			Err:         err,
		}
		p.logger.Error("Batch delivery failed",
			"table", tableName,
			"partition", pid.String(),
			"batch_size", len(entries),
			"attempts", attempts,
			"trigger", trigger,
			"error", perr,
		)
		p.deadLetter(ctx, entries, tableName, err, attempts)
		p.metrics.AddFailedRecords(tableName, float64(len(entries)))
	} else {
		p.logger.Debug("Batch delivered",
			"table", tableName,
			"partition", pid.String(),
			"batch_size", len(entries),
			"written_rows", written,
			"attempts", attempts,
			"trigger", trigger,
			"elapsed_ms", p.now().Sub(start).Milliseconds(),
		)
	}

	p.commit(pid, last.Message.Metadata.Offset, last.CommitFunc)
}

// deadLetter publishes entries to the DLQ and archives them as one file.
func (p *Processor) deadLetter(ctx context.Context, entries []event.Entry, tableName string, cause error, attempts int) {
	now := p.now()
	failed := make([]event.FailedRecord, len(entries))
	for i, e := range entries {
		failed[i] = event.FailedRecord{
			Message:  e.Message,
			Table:    tableName,
			Reason:   cause.Error(),
			Attempts: attempts,
			FailedAt: now,
		}
	}

	if p.deps.DLQ != nil {
		for _, rec := range failed {
			if err := p.deps.DLQ.Publish(ctx, rec); err != nil {
				p.logger.Error("Failed to publish to DLQ",
					"topic", rec.Message.Metadata.Topic,
					"partition", rec.Message.Metadata.Partition,
					"offset", rec.Message.Metadata.Offset,
					"error", err,
				)
			}
		}
	}

	if p.deps.Archive == nil || p.deps.Router == nil {
		return
	}
	partition := entries[0].Message.Metadata.Partition
	dir := p.deps.Router.Route(tableName, partition, now)
	if _, err := p.deps.Archive.Write(ctx, failed, dir); err != nil {
		p.logger.Error("Failed to archive failed batch",
			"table", tableName,
			"partition", partition,
			"path", dir,
			"batch_size", len(failed),
			"error", err,
		)
	}
}

func (p *Processor) commit(pid event.PartitionID, offset int64, commitFunc func() error) {
	if commitFunc == nil {
		return
	}
	if err := commitFunc(); err != nil {
		p.logger.Error("Failed to commit offset",
			"partition", pid.String(),
			"offset", offset,
			"error", &errors.CommitError{PartitionID: pid, Offset: offset, Err: err},
		)
	}
}

type nopMetrics struct{}

func (nopMetrics) IncConversionFailures(string, string)      {}
func (nopMetrics) SetBufferedRecords(string, int32, float64) {}
func (nopMetrics) IncFlushes(string)                         {}
func (nopMetrics) AddFailedRecords(string, float64)          {}
func (nopMetrics) IncInsertRetries(string)                   {}
