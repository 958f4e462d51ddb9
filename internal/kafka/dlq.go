package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/consumer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// DLQRecord is the payload published to the dead letter queue. JSON values
// are embedded as-is; anything else is carried base64-encoded.
type DLQRecord struct {
	OriginalEvent     json.RawMessage `json:"original_event,omitempty"`
	OriginalValue     []byte          `json:"original_value,omitempty"`
	OriginalKey       string          `json:"original_key,omitempty"`
	OriginalTopic     string          `json:"original_topic"`
	OriginalPartition int32           `json:"original_partition"`
	OriginalOffset    int64           `json:"original_offset"`
	Table             string          `json:"table,omitempty"`
	FailureReason     string          `json:"failure_reason"`
	FailureTimestamp  time.Time       `json:"failure_timestamp"`
	RetryCount        int             `json:"retry_count"`
	ProcessorID       string          `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
}

// DLQMetrics records DLQ publishing outcomes.
type DLQMetrics interface {
	IncDLQPublished(topic, status string)
}

// DLQPublisher publishes undeliverable messages to a dead letter queue.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	metrics     DLQMetrics
	mu          sync.RWMutex
	closed      bool
	processorID string
}

// NewDLQPublisher creates a new DLQ publisher. A disabled publisher accepts
// and drops every record.
func NewDLQPublisher(
	securityConfig ConsumerConfig,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	metrics DLQMetrics,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return newDLQPublisher(nil, dlqConfig, logger, metrics, processorID), nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Security configuration (reuse consumer security)
	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(securityConfig.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", securityConfig.BootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)
	return newDLQPublisher(producer, dlqConfig, logger, metrics, processorID), nil
}

func newDLQPublisher(
	producer sarama.SyncProducer,
	config DLQConfig,
	logger *slog.Logger,
	metrics DLQMetrics,
	processorID string,
) *DLQPublisher {
	if metrics == nil {
		metrics = nopDLQMetrics{}
	}
	return &DLQPublisher{
		producer:    producer,
		config:      config,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
	}
}

// Topic returns the DLQ topic for a source topic.
func (p *DLQPublisher) Topic(source string) string {
	return source + p.config.TopicSuffix
}

// Publish publishes a failed message to the DLQ.
func (p *DLQPublisher) Publish(ctx context.Context, rec event.FailedRecord) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrConsumerClosed
	}

	if !p.config.Enabled {
		p.logger.Debug("DLQ disabled, skipping publish",
			"topic", rec.Message.Metadata.Topic,
			"offset", rec.Message.Metadata.Offset,
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	meta := rec.Message.Metadata
	dlqTopic := p.Topic(meta.Topic)

	data, err := json.Marshal(p.record(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ record: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(rec.Reason)},
			{Key: []byte("original_topic"), Value: []byte(meta.Topic)},
			{Key: []byte("original_partition"), Value: []byte(strconv.Itoa(int(meta.Partition)))},
			{Key: []byte("original_offset"), Value: []byte(strconv.FormatInt(meta.Offset, 10))},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: time.Now(),
	}
	if meta.Key != nil {
		msg.Key = sarama.ByteEncoder(meta.Key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.metrics.IncDLQPublished(meta.Topic, "error")
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", dlqTopic,
			"source_offset", meta.Offset,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.metrics.IncDLQPublished(meta.Topic, "success")
	p.logger.Info("published message to DLQ",
		"dlq_topic", dlqTopic,
		"partition", partition,
		"offset", offset,
		"source_partition", meta.Partition,
		"source_offset", meta.Offset,
		"reason", rec.Reason,
	)
	return nil
}

func (p *DLQPublisher) record(rec event.FailedRecord) DLQRecord {
	meta := rec.Message.Metadata
	failedAt := rec.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now()
	}
	out := DLQRecord{
		OriginalKey:       string(meta.Key),
		OriginalTopic:     meta.Topic,
		OriginalPartition: meta.Partition,
		OriginalOffset:    meta.Offset,
		Table:             rec.Table,
		FailureReason:     rec.Reason,
		FailureTimestamp:  failedAt.UTC(),
		RetryCount:        rec.Attempts,
		ProcessorID:       p.processorID,
	}
	if v := rec.Message.Value; len(v) > 0 && json.Valid(v) {
		out.OriginalEvent = json.RawMessage(v)
	} else {
		out.OriginalValue = v
	}
	return out
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.logger.Info("closing DLQ publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("DLQ publisher closed")
	return nil
}

type nopDLQMetrics struct{}

func (nopDLQMetrics) IncDLQPublished(string, string) {}
