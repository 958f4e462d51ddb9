package kafka

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/event"
)

func failedRecord(value []byte) event.FailedRecord {
	return event.FailedRecord{
		Message: event.Message{
			Metadata: event.KafkaMetadata{
				Topic:     "events",
				Partition: 2,
				Offset:    99,
				Key:       []byte("user-7"),
			},
			Value: value,
		},
		Table:    "events",
		Reason:   "type mismatch: column=id",
		Attempts: 3,
		FailedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type dlqCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *dlqCounter) IncDLQPublished(topic, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[topic+":"+status]++
}

func TestDLQPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	counter := &dlqCounter{}
	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: ".dlq"}, testLogger(), counter, "sink-1")

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "events.dlq" {
			t.Errorf("topic = %q, want events.dlq", msg.Topic)
		}
		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		want := map[string]string{
			"failure_reason":     "type mismatch: column=id",
			"original_topic":     "events",
			"original_partition": "2",
			"original_offset":    "99",
			"processor_id":       "sink-1",
		}
		for k, v := range want {
			if headers[k] != v {
				t.Errorf("header %s = %q, want %q", k, headers[k], v)
			}
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var rec DLQRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if string(rec.OriginalEvent) != `{"id":"x"}` {
			t.Errorf("original_event = %s", rec.OriginalEvent)
		}
		if rec.OriginalValue != nil {
			t.Errorf("original_value = %q, want empty for JSON values", rec.OriginalValue)
		}
		if rec.OriginalOffset != 99 || rec.RetryCount != 3 || rec.Table != "events" || rec.ProcessorID != "sink-1" {
			t.Errorf("record = %+v", rec)
		}
		return nil
	})

	if err := p.Publish(context.Background(), failedRecord([]byte(`{"id":"x"}`))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if counter.counts["events:success"] != 1 {
		t.Errorf("counts = %v", counter.counts)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDLQPublish_BinaryValue(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: "-dead"}, testLogger(), nil, "sink-1")

	value := []byte{0x00, 0xff, 0x10}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(raw []byte) error {
		var rec DLQRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if rec.OriginalEvent != nil {
			t.Errorf("original_event = %s, want empty", rec.OriginalEvent)
		}
		if string(rec.OriginalValue) != string(value) {
			t.Errorf("original_value = %v, want %v", rec.OriginalValue, value)
		}
		if !strings.Contains(string(raw), `"original_value":"AP8Q"`) {
			t.Errorf("value not base64 encoded: %s", raw)
		}
		return nil
	})

	if err := p.Publish(context.Background(), failedRecord(value)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	_ = p.Close()
}

func TestDLQPublish_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	counter := &dlqCounter{}
	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: ".dlq"}, testLogger(), counter, "sink-1")

	broker := stderrors.New("broker unavailable")
	producer.ExpectSendMessageAndFail(broker)

	err := p.Publish(context.Background(), failedRecord([]byte(`{}`)))
	if !stderrors.Is(err, broker) {
		t.Fatalf("Publish() error = %v, want %v", err, broker)
	}
	if counter.counts["events:error"] != 1 {
		t.Errorf("counts = %v", counter.counts)
	}
	_ = p.Close()
}

func TestDLQPublish_Disabled(t *testing.T) {
	p, err := NewDLQPublisher(ConsumerConfig{}, DLQConfig{Enabled: false}, testLogger(), nil, "sink-1")
	if err != nil {
		t.Fatalf("NewDLQPublisher() error = %v", err)
	}
	if err := p.Publish(context.Background(), failedRecord(nil)); err != nil {
		t.Errorf("Publish() on disabled DLQ error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDLQPublish_Closed(t *testing.T) {
	p := newDLQPublisher(nil, DLQConfig{Enabled: true, TopicSuffix: ".dlq"}, testLogger(), nil, "sink-1")
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := p.Publish(context.Background(), failedRecord(nil))
	if !stderrors.Is(err, errors.ErrConsumerClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrConsumerClosed", err)
	}
}

func TestDLQPublish_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: ".dlq"}, testLogger(), nil, "sink-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, failedRecord(nil)); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
	_ = p.Close()
}

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		suffix string
		source string
		want   string
	}{
		{".dlq", "events", "events.dlq"},
		{"-dlq", "orders.v1", "orders.v1-dlq"},
		{"", "events", "events"},
	}
	for _, tt := range tests {
		p := newDLQPublisher(nil, DLQConfig{TopicSuffix: tt.suffix}, testLogger(), nil, "")
		if got := p.Topic(tt.source); got != tt.want {
			t.Errorf("Topic(%q) with suffix %q = %q, want %q", tt.source, tt.suffix, got, tt.want)
		}
	}
}

func TestDLQPublish_Concurrent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Enabled: true, TopicSuffix: ".dlq"}, testLogger(), nil, "sink-1")

	const n = 10
	for i := 0; i < n; i++ {
		producer.ExpectSendMessageAndSucceed()
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Publish(context.Background(), failedRecord([]byte(`{}`))); err != nil {
				t.Errorf("Publish() error = %v", err)
			}
		}()
	}
	wg.Wait()
	_ = p.Close()
}
