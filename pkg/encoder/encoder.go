// Package encoder defines interfaces for encoding records to insert wire
// formats and failed batches to archive file formats.
package encoder

import (
	"io"

	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

// Format is an insert wire format name as the destination spells it.
type Format string

const (
	FormatRowBinary   Format = "RowBinary"
	FormatJSONEachRow Format = "JSONEachRow"
)

// RowEncoder serializes records into an insert wire format.
type RowEncoder interface {
	// EncodeRow appends one record to dst in the encoder's wire format.
	// Tombstones are appended as nothing.
	EncodeRow(dst []byte, tbl table.Table, rec *event.Record) ([]byte, error)

	// EncodeBatch writes every record of batch to w in order and returns
	// the number of rows written.
	EncodeBatch(w io.Writer, tbl table.Table, batch []event.Record) (int, error)

	// Format returns the wire format this encoder produces.
	Format() Format
}

// Encoder encodes failed records to an archive file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []event.FailedRecord) (*event.BatchStats, error)

	// EncodeToBytes encodes records in memory.
	EncodeToBytes(records []event.FailedRecord) ([]byte, error)

	// Format returns the file format this encoder produces.
	Format() event.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
