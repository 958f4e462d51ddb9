package storage

import (
	"fmt"
	"log/slog"

	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/storage"
)

// Supported archive backends.
const (
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendAzure = "azure"
	BackendGCS   = "gcs"
)

// Config selects and configures an archive backend.
type Config struct {
	Backend     string
	Format      event.FileFormat
	Compression string
	// BasePath prefixes every archive directory inside the bucket or, for
	// the file backend, inside File.BasePath.
	BasePath string
	File     FileConfig
	S3       S3Config
	Azure    AzureConfig
	GCS      GCSConfig
}

// New creates the writer and router for the configured backend.
func New(cfg Config, logger *slog.Logger, metrics MetricsCollector) (storage.Writer, *DefaultRouter, error) {
	switch cfg.Backend {
	case BackendFile:
		w, err := NewFileWriter(cfg.File, cfg.Format, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouter("file", "", cfg.BasePath), nil
	case BackendS3:
		w, err := NewS3Writer(cfg.S3, cfg.Format, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouter("s3", cfg.S3.Bucket, cfg.BasePath), nil
	case BackendAzure:
		w, err := NewAzureWriter(cfg.Azure, cfg.Format, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouter("wasbs", cfg.Azure.ContainerName, cfg.BasePath), nil
	case BackendGCS:
		w, err := NewGCSWriter(cfg.GCS, cfg.Format, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouter("gs", cfg.GCS.Bucket, cfg.BasePath), nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive backend: %q", cfg.Backend)
	}
}
