package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/kafeventsink/pkg/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewFileWriter(t *testing.T) {
	tests := []struct {
		name        string
		basePath    string
		format      event.FileFormat
		compression string
		wantErr     bool
	}{
		{"valid parquet config", t.TempDir(), event.FormatParquet, "snappy", false},
		{"valid avro config", t.TempDir(), event.FormatAvro, "gzip", false},
		{"unknown format", t.TempDir(), event.FileFormat("csv"), "", true},
		{"missing base path", "", event.FormatAvro, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, err := NewFileWriter(FileConfig{BasePath: tt.basePath}, tt.format, tt.compression, testLogger(), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFileWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && writer.basePath != tt.basePath {
				t.Errorf("basePath = %v, want %v", writer.basePath, tt.basePath)
			}
		})
	}
}

func TestFileWriter_Write(t *testing.T) {
	basePath := t.TempDir()
	metrics := newMockMetrics()

	writer, err := NewFileWriter(FileConfig{BasePath: basePath}, event.FormatAvro, "uncompressed", testLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	router := NewRouter("file", "", "failed")
	dir := router.Route("events", 1, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	size, err := writer.Write(context.Background(), failedBatch(3), dir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if size <= 0 {
		t.Errorf("Write() size = %v, want > 0", size)
	}

	fullDir := filepath.Join(basePath, "failed", "events", "dt=2025-06-01", "pid=1")
	entries, err := os.ReadDir(fullDir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", fullDir, err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "failed_") || !strings.HasSuffix(name, ".avro") {
		t.Errorf("unexpected file name %q", name)
	}

	f, err := os.Open(filepath.Join(fullDir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ocf, err := goavro.NewOCFReader(f)
	if err != nil {
		t.Fatalf("NewOCFReader() error = %v", err)
	}
	count := 0
	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		rec := datum.(map[string]interface{})
		if rec["table"] != "events" {
			t.Errorf("table = %v, want events", rec["table"])
		}
		count++
	}
	if count != 3 {
		t.Errorf("records read = %d, want 3", count)
	}

	if metrics.archived["events:file:success"] != 1 {
		t.Errorf("archived = %v, want one success", metrics.archived)
	}
	if len(metrics.fileSizes) != 1 || metrics.fileSizes[0] != float64(size) {
		t.Errorf("fileSizes = %v, want [%d]", metrics.fileSizes, size)
	}
}

func TestFileWriter_WriteUniqueNames(t *testing.T) {
	basePath := t.TempDir()
	writer, err := NewFileWriter(FileConfig{BasePath: basePath}, event.FormatParquet, "snappy", testLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := writer.Write(context.Background(), failedBatch(1), "events/"); err != nil {
			t.Fatalf("Write() #%d error = %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(basePath, "events"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 distinct files, got %d", len(entries))
	}
}

func TestFileWriter_WriteEmpty(t *testing.T) {
	basePath := t.TempDir()
	metrics := newMockMetrics()
	writer, err := NewFileWriter(FileConfig{BasePath: basePath}, event.FormatAvro, "", testLogger(), metrics)
	if err != nil {
		t.Fatal(err)
	}

	size, err := writer.Write(context.Background(), nil, "events/")
	if err != nil || size != 0 {
		t.Errorf("Write(nil) = %d, %v; want 0, nil", size, err)
	}
	if len(metrics.archived) != 0 {
		t.Errorf("no metrics expected for empty write, got %v", metrics.archived)
	}
}

func TestFileWriter_CancelledContext(t *testing.T) {
	writer, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, event.FormatAvro, "", testLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := writer.Write(ctx, failedBatch(1), "events/"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFileWriter_Close(t *testing.T) {
	writer, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, event.FormatParquet, "snappy", testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
