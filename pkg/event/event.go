package event

import (
	"fmt"
	"time"
)

// KafkaMetadata contains Kafka-specific metadata for a message.
type KafkaMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// PartitionID returns the partition the metadata belongs to.
func (m KafkaMetadata) PartitionID() PartitionID {
	return PartitionID{Topic: m.Topic, Partition: m.Partition}
}

// Message is a raw Kafka message before conversion.
type Message struct {
	Metadata KafkaMetadata
	Value    []byte
}

// ConsumedMessage represents a message consumed from Kafka.
type ConsumedMessage struct {
	Message
	CommitFunc func() error
}

// SchemaMode tells whether a record carries a declared field list.
type SchemaMode uint8

const (
	// SchemaModeSchema records have a typed, known field list.
	SchemaModeSchema SchemaMode = iota
	// SchemaModeSchemaless records are an untyped key/value map.
	SchemaModeSchemaless
)

func (m SchemaMode) String() string {
	switch m {
	case SchemaModeSchema:
		return "SCHEMA"
	case SchemaModeSchemaless:
		return "SCHEMA_LESS"
	default:
		return "UNKNOWN"
	}
}

// Field is one declared field of a SCHEMA mode record.
type Field struct {
	Name     string
	Type     FieldType
	Optional bool
}

// Record is one decoded message as the insert path consumes it.
type Record struct {
	Topic  string
	Mode   SchemaMode
	Fields []Field
	// Values is nil for tombstones.
	Values map[string]Data
	Kafka  KafkaMetadata
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (Data, bool) {
	d, ok := r.Values[name]
	return d, ok
}

// IsTombstone reports whether the source message had no value.
func (r *Record) IsTombstone() bool {
	return r.Values == nil
}

// Position renders the record's partition and offset for diagnostics.
func (r *Record) Position() string {
	return fmt.Sprintf("%s@%d", r.Kafka.PartitionID(), r.Kafka.Offset)
}

// FieldNames returns the names to emit for the record: the declared fields in
// SCHEMA mode, otherwise the value keys in unspecified order.
func (r *Record) FieldNames() []string {
	if r.Mode == SchemaModeSchema && len(r.Fields) > 0 {
		names := make([]string, len(r.Fields))
		for i, f := range r.Fields {
			names[i] = f.Name
		}
		return names
	}
	names := make([]string, 0, len(r.Values))
	for k := range r.Values {
		names = append(names, k)
	}
	return names
}

// Entry is a converted record waiting in a partition buffer, kept together
// with the raw message for dead-lettering and archiving.
type Entry struct {
	Record     Record
	Message    Message
	CommitFunc func() error
	ReceivedAt time.Time
}

// FailedRecord is a message that could not be delivered, with the reason.
type FailedRecord struct {
	Message  Message
	Table    string
	Reason   string
	Attempts int
	FailedAt time.Time
}

// BatchStats contains statistics about buffered entries.
type BatchStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// FileFormat represents the archive file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)
