package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/kafeventsink/internal/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// Validate checks the required GCS settings.
func (c GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	if c.CredentialsFile != "" && c.CredentialsJSON != "" {
		return fmt.Errorf("gcs credentials file and credentials json are mutually exclusive")
	}
	return nil
}

// ClientOptions returns the client options for the configured endpoint and
// credentials. Application default credentials apply when none are given.
func (c GCSConfig) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	switch {
	case c.UseDefaultCredential:
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client         *gcs.Client
	bucket         string
	format         event.FileFormat
	encoderFactory *encoder.Factory
	names          *fileNamer
	logger         *slog.Logger
	metrics        MetricsCollector
}

// NewGCSWriter creates a new Google Cloud Storage archive writer.
func NewGCSWriter(
	cfg GCSConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	client, err := gcs.NewClient(context.Background(), cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	logger.Info("GCS archive writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"format", format,
		"compression", compression,
	)

	return &GCSWriter{
		client:         client,
		bucket:         cfg.Bucket,
		format:         format,
		encoderFactory: encoderFactory,
		names:          newFileNamer(),
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes records in memory and uploads them as an object below dir.
func (w *GCSWriter) Write(ctx context.Context, records []event.FailedRecord, dir string) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	start := time.Now()
	table := tableOf(records)

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		return 0, storageError(w.metrics, "gcs", "encode", dir, err)
	}
	objectPath := objectKey(dir, "gs", w.names.next(enc.FileExtension()))

	data, err := enc.EncodeToBytes(records)
	if err != nil {
		return 0, storageError(w.metrics, "gcs", "encode", objectPath, err)
	}

	ow := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
	ow.ContentType = contentType(w.format)

	written, err := io.Copy(ow, bytes.NewReader(data))
	if err != nil {
		_ = ow.Close()
		w.metrics.IncArchivedBatches(table, "gcs", "error")
		return 0, storageError(w.metrics, "gcs", "upload", objectPath, err)
	}
	// The upload is only committed on Close.
	if err := ow.Close(); err != nil {
		w.metrics.IncArchivedBatches(table, "gcs", "error")
		return 0, storageError(w.metrics, "gcs", "upload", objectPath, err)
	}

	duration := time.Since(start)
	w.metrics.IncArchivedBatches(table, "gcs", "success")
	w.metrics.ObserveArchiveFileSize(table, "gcs", float64(written))
	w.metrics.ObserveArchiveWriteDuration("gcs", duration.Seconds())

	w.logger.Info("Archived failed batch",
		"bucket", w.bucket,
		"object", objectPath,
		"table", table,
		"record_count", len(records),
		"file_size", written,
		"format", w.format,
		"elapsed_ms", duration.Milliseconds(),
	)
	return written, nil
}

// Close closes the GCS client.
func (w *GCSWriter) Close() error {
	w.logger.Info("Closing GCS archive writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
