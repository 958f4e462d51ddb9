package encoder

import (
	"bytes"
	"testing"

	pkgencoder "github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name        string
		format      event.FileFormat
		compression string
	}{
		{"parquet with snappy", event.FormatParquet, "snappy"},
		{"parquet with gzip", event.FormatParquet, "gzip"},
		{"avro with gzip", event.FormatAvro, "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(tt.format, tt.compression)
			if factory == nil {
				t.Fatal("expected non-nil factory")
			}
			if factory.format != tt.format {
				t.Errorf("format = %v, want %v", factory.format, tt.format)
			}
			if factory.compression != tt.compression {
				t.Errorf("compression = %v, want %v", factory.compression, tt.compression)
			}
		})
	}
}

func TestFactory_CreateEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  event.FileFormat
		wantErr bool
	}{
		{"parquet format", event.FormatParquet, false},
		{"avro format", event.FormatAvro, false},
		{"unsupported format", event.FileFormat("invalid"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(tt.format, "snappy")
			encoder, err := factory.CreateEncoder()

			if (err != nil) != tt.wantErr {
				t.Errorf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && encoder == nil {
				t.Error("expected non-nil encoder")
			}
		})
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()

	if len(formats) == 0 {
		t.Error("expected non-empty supported formats")
	}

	// Verify expected formats
	hasParquet := false
	hasAvro := false
	for _, f := range formats {
		if f == event.FormatParquet {
			hasParquet = true
		}
		if f == event.FormatAvro {
			hasAvro = true
		}
	}

	if !hasParquet {
		t.Error("expected parquet format in supported formats")
	}
	if !hasAvro {
		t.Error("expected avro format in supported formats")
	}
}

func TestSupportedCompressions(t *testing.T) {
	tests := []struct {
		name   string
		format event.FileFormat
		want   []string
	}{
		{
			name:   "parquet compressions",
			format: event.FormatParquet,
			want:   []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"},
		},
		{
			name:   "avro compressions",
			format: event.FormatAvro,
			want:   []string{"uncompressed", "gzip"},
		},
		{
			name:   "invalid format",
			format: event.FileFormat("invalid"),
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SupportedCompressions(tt.format)
			if len(got) != len(tt.want) {
				t.Errorf("len(SupportedCompressions()) = %d, want %d", len(got), len(tt.want))
				return
			}
			for i, c := range got {
				if c != tt.want[i] {
					t.Errorf("SupportedCompressions()[%d] = %v, want %v", i, c, tt.want[i])
				}
			}
		})
	}
}

func TestDefaultCompression(t *testing.T) {
	tests := []struct {
		name   string
		format event.FileFormat
		want   string
	}{
		{"parquet default", event.FormatParquet, "snappy"},
		{"avro default", event.FormatAvro, "gzip"},
		{"invalid default", event.FileFormat("invalid"), "uncompressed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultCompression(tt.format)
			if got != tt.want {
				t.Errorf("DefaultCompression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCompressionCodec(t *testing.T) {
	tests := []struct {
		name        string
		compression string
	}{
		{"snappy lowercase", "snappy"},
		{"snappy uppercase", "SNAPPY"},
		{"gzip", "gzip"},
		{"lz4", "lz4"},
		{"zstd", "zstd"},
		{"uncompressed", "uncompressed"},
		{"none", "none"},
		{"unknown defaults to snappy", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			option := compressionCodec(tt.compression)
			if option == nil {
				t.Errorf("compressionCodec(%s) returned nil option", tt.compression)
			}
		})
	}
}

func TestNewRowEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  pkgencoder.Format
		wantErr bool
	}{
		{"rowbinary", pkgencoder.FormatRowBinary, false},
		{"jsoneachrow", pkgencoder.FormatJSONEachRow, false},
		{"unsupported", pkgencoder.Format("Native"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewRowEncoder(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRowEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if enc.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", enc.Format(), tt.format)
			}
		})
	}
}

// Benchmark tests

func benchBatch(n int) (table.Table, []event.Record) {
	tbl := table.Table{
		Name: "events",
		Columns: []table.Column{
			{Name: "id", Type: table.UInt32},
			{Name: "name", Type: table.String, Nullable: true},
			{Name: "score", Type: table.Float64},
			{Name: "tags", Type: table.Array, Elem: table.String},
		},
	}
	batch := make([]event.Record, n)
	for i := range batch {
		batch[i] = event.Record{
			Topic: "events",
			Mode:  event.SchemaModeSchema,
			Fields: []event.Field{
				{Name: "id", Type: event.FieldUint32},
				{Name: "name", Type: event.FieldString, Optional: true},
				{Name: "score", Type: event.FieldFloat64},
				{Name: "tags", Type: event.FieldArray},
			},
			Values: map[string]event.Data{
				"id":    event.Uint32(i),
				"name":  event.String("benchmark payload"),
				"score": event.Float64(float64(i) / 3),
				"tags": event.List{Elem: event.FieldString, Items: []event.Data{
					event.String("a"), event.String("b"),
				}},
			},
			Kafka: event.KafkaMetadata{Topic: "events", Offset: int64(i)},
		}
	}
	return tbl, batch
}

func BenchmarkRowBinaryEncoder_EncodeBatch(b *testing.B) {
	tbl, batch := benchBatch(1000)
	enc := NewRowBinaryEncoder()
	var buf bytes.Buffer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if _, err := enc.EncodeBatch(&buf, tbl, batch); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSONEachRowEncoder_EncodeBatch(b *testing.B) {
	tbl, batch := benchBatch(1000)
	enc := NewJSONEachRowEncoder()
	var buf bytes.Buffer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if _, err := enc.EncodeBatch(&buf, tbl, batch); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFactory_CreateEncoder(b *testing.B) {
	factory := NewFactory(event.FormatParquet, "snappy")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := factory.CreateEncoder()
		if err != nil {
			b.Fatal(err)
		}
	}
}
