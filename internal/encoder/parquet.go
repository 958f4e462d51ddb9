package encoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// FailedRecordParquet is the Parquet schema for archived failed records.
type FailedRecordParquet struct {
	Table          string            `parquet:"table,dict"`
	KafkaTopic     string            `parquet:"kafka_topic,dict"`
	KafkaPartition int32             `parquet:"kafka_partition"`
	KafkaOffset    int64             `parquet:"kafka_offset"`
	KafkaKey       []byte            `parquet:"kafka_key,optional"`
	KafkaTimestamp time.Time         `parquet:"kafka_timestamp,timestamp(microsecond)"`
	KafkaHeaders   map[string]string `parquet:"kafka_headers"`
	Value          []byte            `parquet:"value,optional"`
	FailureReason  string            `parquet:"failure_reason"`
	Attempts       int32             `parquet:"attempts"`
	FailedAt       time.Time         `parquet:"failed_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet files holding
// failed records. Supports SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, records []event.FailedRecord) (*event.BatchStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.write(file, records); err != nil {
		file.Close()
		return nil, err
	}

	// Close file before getting stats to ensure all data is flushed
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
func (e *ParquetEncoder) EncodeToBytes(records []event.FailedRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *ParquetEncoder) write(w io.Writer, records []event.FailedRecord) error {
	rows := make([]FailedRecordParquet, len(records))
	for i, record := range records {
		rows[i] = convertToParquetRecord(record)
	}

	writer := parquet.NewGenericWriter[FailedRecordParquet](
		w,
		parquet.SchemaOf(new(FailedRecordParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("kafeventsink", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func convertToParquetRecord(record event.FailedRecord) FailedRecordParquet {
	meta := record.Message.Metadata
	headers := meta.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	return FailedRecordParquet{
		Table:          record.Table,
		KafkaTopic:     meta.Topic,
		KafkaPartition: meta.Partition,
		KafkaOffset:    meta.Offset,
		KafkaKey:       meta.Key,
		KafkaTimestamp: meta.Timestamp,
		KafkaHeaders:   headers,
		Value:          record.Message.Value,
		FailureReason:  record.Reason,
		Attempts:       int32(record.Attempts),
		FailedAt:       record.FailedAt,
	}
}

// Format returns the file format.
func (e *ParquetEncoder) Format() event.FileFormat {
	return event.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
