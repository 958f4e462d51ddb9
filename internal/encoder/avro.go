package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro OCF files holding
// failed records. It supports optional gzip compression of the whole file.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

func avroSchema() string {
	return `{
		"type": "record",
		"name": "FailedRecord",
		"namespace": "com.kafka.event.sink",
		"fields": [
			{"name": "table", "type": "string"},
			{"name": "kafka_topic", "type": "string"},
			{"name": "kafka_partition", "type": "int"},
			{"name": "kafka_offset", "type": "long"},
			{"name": "kafka_key", "type": ["null", "bytes"], "default": null},
			{"name": "kafka_timestamp", "type": "string"},
			{"name": "kafka_headers", "type": {"type": "map", "values": "string"}},
			{"name": "value", "type": ["null", "bytes"], "default": null},
			{"name": "failure_reason", "type": "string"},
			{"name": "attempts", "type": "int"},
			{"name": "failed_at", "type": "string"}
		]
	}`
}

func (e *AvroEncoder) gzipped() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

// Encode writes records to an Avro file.
func (e *AvroEncoder) Encode(filePath string, records []event.FailedRecord) (*event.BatchStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := e.write(file, records); err != nil {
		return nil, err
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	now := time.Now()
	return &event.BatchStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: now,
		LastWriteTime:  now,
	}, nil
}

// EncodeToBytes encodes records to bytes for object storage uploads.
func (e *AvroEncoder) EncodeToBytes(records []event.FailedRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) write(w io.Writer, records []event.FailedRecord) error {
	var gzipWriter *gzip.Writer
	if e.gzipped() {
		gzipWriter = gzip.NewWriter(w)
		w = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	for _, record := range records {
		if err := ocfWriter.Append([]interface{}{e.convertToAvroMap(record)}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

// convertToAvroMap converts a FailedRecord to Avro map representation.
func (e *AvroEncoder) convertToAvroMap(record event.FailedRecord) map[string]interface{} {
	meta := record.Message.Metadata

	headers := make(map[string]interface{}, len(meta.Headers))
	for k, v := range meta.Headers {
		headers[k] = v
	}

	avroMap := map[string]interface{}{
		"table":           record.Table,
		"kafka_topic":     meta.Topic,
		"kafka_partition": meta.Partition,
		"kafka_offset":    meta.Offset,
		"kafka_timestamp": meta.Timestamp.Format(time.RFC3339Nano),
		"kafka_headers":   headers,
		"failure_reason":  record.Reason,
		"attempts":        int32(record.Attempts),
		"failed_at":       record.FailedAt.Format(time.RFC3339Nano),
	}

	// Nullable fields use goavro.Union
	if len(meta.Key) > 0 {
		avroMap["kafka_key"] = goavro.Union("bytes", meta.Key)
	} else {
		avroMap["kafka_key"] = nil
	}
	if record.Message.Value != nil {
		avroMap["value"] = goavro.Union("bytes", record.Message.Value)
	} else {
		avroMap["value"] = nil
	}

	return avroMap
}

// Format returns the file format.
func (e *AvroEncoder) Format() event.FileFormat {
	return event.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}
