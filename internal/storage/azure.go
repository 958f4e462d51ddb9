package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/kafeventsink/internal/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	// Endpoint overrides the blob endpoint, e.g. for Azurite.
	Endpoint string
}

// Validate checks the required Azure settings.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.AccountKey == "" {
		return fmt.Errorf("azure account key is required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("azure container name is required")
	}
	return nil
}

// ConnectionString builds the shared-key connection string for the account.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client         *azblob.Client
	containerName  string
	format         event.FileFormat
	encoderFactory *encoder.Factory
	names          *fileNamer
	logger         *slog.Logger
	metrics        MetricsCollector
}

// NewAzureWriter creates a new Azure Blob archive writer.
func NewAzureWriter(
	cfg AzureConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	logger.Info("Azure archive writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"format", format,
		"compression", compression,
	)

	return &AzureWriter{
		client:         client,
		containerName:  cfg.ContainerName,
		format:         format,
		encoderFactory: encoderFactory,
		names:          newFileNamer(),
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes records in memory and uploads them as a block blob below dir.
func (w *AzureWriter) Write(ctx context.Context, records []event.FailedRecord, dir string) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	start := time.Now()
	table := tableOf(records)

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		return 0, storageError(w.metrics, "azure", "encode", dir, err)
	}
	blobPath := objectKey(dir, "wasbs", w.names.next(enc.FileExtension()))

	data, err := enc.EncodeToBytes(records)
	if err != nil {
		return 0, storageError(w.metrics, "azure", "encode", blobPath, err)
	}

	ct := contentType(w.format)
	_, err = w.client.UploadBuffer(ctx, w.containerName, blobPath, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		w.metrics.IncArchivedBatches(table, "azure", "error")
		return 0, storageError(w.metrics, "azure", "upload", blobPath, err)
	}

	size := int64(len(data))
	duration := time.Since(start)
	w.metrics.IncArchivedBatches(table, "azure", "success")
	w.metrics.ObserveArchiveFileSize(table, "azure", float64(size))
	w.metrics.ObserveArchiveWriteDuration("azure", duration.Seconds())

	w.logger.Info("Archived failed batch",
		"container", w.containerName,
		"blob", blobPath,
		"table", table,
		"record_count", len(records),
		"file_size", size,
		"format", w.format,
		"elapsed_ms", duration.Milliseconds(),
	)
	return size, nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure archive writer closed")
	return nil
}
