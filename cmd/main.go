package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/kafeventsink/internal/buffer"
	"github.com/jittakal/kafeventsink/internal/clickhouse"
	"github.com/jittakal/kafeventsink/internal/config"
	"github.com/jittakal/kafeventsink/internal/config/dto"
	"github.com/jittakal/kafeventsink/internal/convert"
	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/internal/insert"
	"github.com/jittakal/kafeventsink/internal/kafka"
	"github.com/jittakal/kafeventsink/internal/observability"
	"github.com/jittakal/kafeventsink/internal/server"
	"github.com/jittakal/kafeventsink/internal/sink"
	"github.com/jittakal/kafeventsink/internal/storage"
	"github.com/jittakal/kafeventsink/internal/validator"
	"github.com/jittakal/kafeventsink/pkg/event"
)

var version = "1.0.0"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "kafeventsink",
		Short: "Stream Kafka topics into ClickHouse tables",
		Long: `kafeventsink consumes Kafka topics, batches records per partition and
inserts them into ClickHouse over HTTP using RowBinary or JSONEachRow.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (falls back to CONFIG_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the sink until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "Print the destination table catalog as the dispatcher sees it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return printTables(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kafeventsink v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path: flag, then CONFIG_PATH, then the
// default location.
func loadConfig(flagPath string) (*dto.ApplicationConfig, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/application.yaml"
	}

	cfg, err := config.NewLoader().Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *dto.ApplicationConfig) *slog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:   cfg.Observability.Logging.Level,
		Format:  cfg.Observability.Logging.Format,
		Output:  cfg.Observability.Logging.Output,
		Service: cfg.Application.Name,
	})
}

func clickHouseConfig(cfg dto.ClickHouseConfig) clickhouse.Config {
	return clickhouse.Config{
		Hostname:     cfg.Hostname,
		Port:         cfg.Port,
		Database:     cfg.Database,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SSL:          cfg.SSL,
		Timeout:      cfg.Timeout(),
		Endpoints:    cfg.Endpoints,
		Selection:    cfg.EndpointSelection,
		HashFunction: cfg.HashFunction,
		Compression:  cfg.Compression,
	}
}

func newDispatcher(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics insert.MetricsCollector) (*clickhouse.Client, *insert.Dispatcher, error) {
	policy, err := validator.ParsePolicy(cfg.ClickHouse.ValidationPolicy)
	if err != nil {
		return nil, nil, err
	}

	client, err := clickhouse.NewClient(clickHouseConfig(cfg.ClickHouse), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create clickhouse client: %w", err)
	}

	dispatcher := insert.NewDispatcher(
		client,
		clickhouse.NewCatalog(client, logger),
		insert.Config{
			Quorum:       cfg.ClickHouse.InsertQuorum,
			Policy:       policy,
			PipeSize:     cfg.ClickHouse.PipeBufferBytes,
			Settings:     cfg.ClickHouse.Settings,
			TopicToTable: cfg.ClickHouse.TopicToTable,
		},
		logger,
		metrics,
	)
	return client, dispatcher, nil
}

// loadCatalog reads the table catalog, retrying transient failures up to
// clickhouse.retry_count times.
func loadCatalog(ctx context.Context, cfg *dto.ApplicationConfig, dispatcher *insert.Dispatcher, logger *slog.Logger) error {
	policy := sink.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.ClickHouse.RetryCount
	policy.MaxBackoff = 5 * time.Second

	_, err := policy.Do(ctx, dispatcher.Reload, errors.IsRetryable,
		func(attempt int, delay time.Duration, err error) {
			logger.Warn("Catalog load failed, retrying", "attempt", attempt, "backoff_ms", delay.Milliseconds(), "error", err)
		},
	)
	return err
}

func printTables(ctx context.Context, cfg *dto.ApplicationConfig, out io.Writer) error {
	logger := newLogger(cfg)
	_, dispatcher, err := newDispatcher(cfg, logger, nil)
	if err != nil {
		return err
	}
	if err := loadCatalog(ctx, cfg, dispatcher, logger); err != nil {
		return err
	}

	data, err := json.MarshalIndent(server.TablesView(dispatcher.Tables()), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func run(ctx context.Context, cfg *dto.ApplicationConfig) error {
	logger := newLogger(cfg)
	logger.Info("Starting kafka event sink",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"clickhouse_host", cfg.ClickHouse.Hostname,
		"clickhouse_user", cfg.ClickHouse.Username,
		"clickhouse_password", config.MaskPassword(cfg.ClickHouse.Password),
		"kafka_sasl_password", config.MaskPassword(cfg.Kafka.SASLPassword),
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cleanups run in reverse registration order.
	var cleanups []func(context.Context) error
	addCleanup := func(name string, fn func(context.Context) error) {
		cleanups = append(cleanups, func(ctx context.Context) error {
			if err := fn(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
		logger.Debug("Registered cleanup", "component", name)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout())
		defer cancel()
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](ctx); err != nil {
				logger.Error("Cleanup failed", "error", err)
			}
		}
		logger.Info("Application stopped")
	}()

	shutdownTracing, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        cfg.Observability.Tracing.Enabled,
		Exporter:       cfg.Observability.Tracing.Exporter,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		ServiceName:    cfg.Application.Name,
		ServiceVersion: cfg.Application.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	addCleanup("tracing", shutdownTracing)

	client, dispatcher, err := newDispatcher(cfg, logger, metrics)
	if err != nil {
		return err
	}
	if err := loadCatalog(ctx, cfg, dispatcher, logger); err != nil {
		return fmt.Errorf("failed to load table catalog: %w", err)
	}

	converter, err := convert.New(convert.Config{
		Format:        convert.Format(cfg.Converter.Format),
		SchemasEnable: cfg.Converter.SchemasEnable,
	})
	if err != nil {
		return err
	}

	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
		ChannelBufferSize:   cfg.Kafka.Consumer.ChannelBufferSize,
		AWSRegion:           cfg.Kafka.AWSRegion,
	}
	consumer, err := kafka.NewSaramaConsumer(consumerConfig, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", func(context.Context) error { return consumer.Close() })

	dlq, err := kafka.NewDLQPublisher(
		consumerConfig,
		kafka.DLQConfig{Enabled: cfg.Kafka.DLQ.Enabled, TopicSuffix: cfg.Kafka.DLQ.TopicSuffix},
		logger,
		metrics,
		cfg.Application.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", func(context.Context) error { return dlq.Close() })

	deps := sink.Dependencies{
		Converter: converter,
		Inserter:  dispatcher,
		Buffers:   buffer.NewManager(cfg.Batching.MaxBytes, cfg.Batching.MaxRecords),
		Policy: buffer.NewPolicy(buffer.PolicyConfig{
			MaxRecords: cfg.Batching.MaxRecords,
			MaxBytes:   cfg.Batching.MaxBytes,
			MaxAge:     cfg.Batching.MaxAge(),
		}),
		DLQ: dlq,
	}
	if cfg.Archive.Enabled {
		writer, router, err := storage.New(archiveConfig(cfg.Archive), logger, metrics)
		if err != nil {
			return fmt.Errorf("failed to create archive writer: %w", err)
		}
		addCleanup("archive-writer", func(context.Context) error { return writer.Close() })
		deps.Archive = writer
		deps.Router = router
	}

	processor := sink.NewProcessor(sink.Config{
		Retry: sink.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
			Multiplier:     cfg.Retry.BackoffMultiplier,
			Jitter:         cfg.Retry.Jitter,
		},
		FlushInterval:   flushInterval(cfg.Batching.MaxAge()),
		ShutdownTimeout: cfg.Shutdown.Timeout(),
	}, deps, logger, metrics)

	checker := server.NewChecker(client, dispatcher)
	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		checker,
		dispatcher,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", httpServer.Shutdown)

	if err := consumer.Subscribe(ctx, cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}
	messages, consumeErrs, err := consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.Info("Application started", "topics", cfg.Kafka.Consumer.Topics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx, messages)
	})
	g.Go(func() error {
		for err := range consumeErrs {
			logger.Error("Consumer error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	checker.SetAlive(false)
	logger.Info("Initiating graceful shutdown")
	return err
}

// flushInterval checks aged buffers a few times per max age.
func flushInterval(maxAge time.Duration) time.Duration {
	if maxAge <= 0 {
		return time.Second
	}
	return max(maxAge/4, 10*time.Millisecond)
}

func archiveConfig(cfg dto.ArchiveConfig) storage.Config {
	format := event.FormatAvro
	if cfg.Format == string(event.FormatParquet) {
		format = event.FormatParquet
	}
	return storage.Config{
		Backend:     cfg.Backend,
		Format:      format,
		Compression: cfg.Compression,
		BasePath:    cfg.BasePath,
		File:        storage.FileConfig{BasePath: cfg.File.BasePath},
		S3: storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			SSEEnabled:      cfg.S3.SSEEnabled,
			SSEKMSKeyID:     cfg.S3.SSEKMSKeyID,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		},
		Azure: storage.AzureConfig{
			AccountName:   cfg.Azure.AccountName,
			AccountKey:    cfg.Azure.AccountKey,
			ContainerName: cfg.Azure.Container,
			Endpoint:      cfg.Azure.Endpoint,
		},
		GCS: storage.GCSConfig{
			Bucket:               cfg.GCS.Bucket,
			ProjectID:            cfg.GCS.ProjectID,
			CredentialsFile:      cfg.GCS.CredentialsFile,
			CredentialsJSON:      cfg.GCS.CredentialsJSON,
			Endpoint:             cfg.GCS.Endpoint,
			UseDefaultCredential: cfg.GCS.UseDefaultCredential,
		},
	}
}
