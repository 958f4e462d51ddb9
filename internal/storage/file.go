package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/kafeventsink/internal/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for the local filesystem.
// Directories below BasePath are created on demand.
type FileWriter struct {
	basePath       string
	format         event.FileFormat
	encoderFactory *encoder.Factory
	names          *fileNamer
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// NewFileWriter creates a new filesystem archive writer.
func NewFileWriter(
	config FileConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("file base path is required")
	}
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	logger.Info("Filesystem archive writer created",
		"base_path", config.BasePath,
		"format", format,
		"compression", compression,
	)

	return &FileWriter{
		basePath:       config.BasePath,
		format:         format,
		encoderFactory: encoderFactory,
		names:          newFileNamer(),
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes records into a new file under basePath/dir.
func (w *FileWriter) Write(ctx context.Context, records []event.FailedRecord, dir string) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	table := tableOf(records)

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		return 0, storageError(w.metrics, "file", "encode", dir, err)
	}

	fullDir := filepath.Join(w.basePath, strings.TrimPrefix(dir, "file://"))
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return 0, storageError(w.metrics, "file", "create", fullDir, err)
	}
	fullPath := filepath.Join(fullDir, w.names.next(fileEncoder.FileExtension()))

	stats, err := fileEncoder.Encode(fullPath, records)
	if err != nil {
		w.metrics.IncArchivedBatches(table, "file", "error")
		return 0, storageError(w.metrics, "file", "write", fullPath, err)
	}

	duration := time.Since(start)
	w.metrics.IncArchivedBatches(table, "file", "success")
	w.metrics.ObserveArchiveFileSize(table, "file", float64(stats.SizeBytes))
	w.metrics.ObserveArchiveWriteDuration("file", duration.Seconds())

	w.logger.Info("Archived failed batch",
		"path", fullPath,
		"table", table,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", w.format,
		"elapsed_ms", duration.Milliseconds(),
	)
	return stats.SizeBytes, nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("Closing filesystem archive writer")
	return nil
}
