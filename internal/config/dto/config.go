package dto

import (
	"fmt"
	"slices"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	ClickHouse    ClickHouseConfig    `mapstructure:"clickhouse"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Converter     ConverterConfig     `mapstructure:"converter"`
	Batching      BatchingConfig      `mapstructure:"batching"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ClickHouseConfig contains the destination connection and insert settings
type ClickHouseConfig struct {
	Hostname          string            `mapstructure:"hostname"`
	Port              int               `mapstructure:"port"`
	Database          string            `mapstructure:"database"`
	Username          string            `mapstructure:"username"`
	Password          string            `mapstructure:"password"`
	SSL               bool              `mapstructure:"ssl"`
	TimeoutSeconds    int               `mapstructure:"timeout_seconds"`
	RetryCount        int               `mapstructure:"retry_count"`
	Endpoints         []string          `mapstructure:"endpoints"`
	EndpointSelection string            `mapstructure:"endpoint_selection"`
	HashFunction      string            `mapstructure:"hash_function"`
	Compression       string            `mapstructure:"compression"`
	InsertQuorum      int               `mapstructure:"insert_quorum"`
	ValidationPolicy  string            `mapstructure:"validation_policy"`
	PipeBufferBytes   int               `mapstructure:"pipe_buffer_bytes"`
	TopicToTable      map[string]string `mapstructure:"topic_to_table"`
	Settings          map[string]string `mapstructure:"settings"`
}

// Timeout returns the request timeout.
func (c ClickHouseConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSRegion        string         `mapstructure:"aws_region"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
	ChannelBufferSize   int      `mapstructure:"channel_buffer_size"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// ConverterConfig selects how message values are decoded
type ConverterConfig struct {
	Format        string `mapstructure:"format"`
	SchemasEnable bool   `mapstructure:"schemas_enable"`
}

// BatchingConfig contains per-partition batching limits
type BatchingConfig struct {
	MaxRecords int   `mapstructure:"max_records"`
	MaxBytes   int64 `mapstructure:"max_bytes"`
	MaxAgeMS   int   `mapstructure:"max_age_ms"`
}

// MaxAge returns the flush age.
func (c BatchingConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMS) * time.Millisecond
}

// RetryConfig contains retry settings
type RetryConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	Jitter            bool    `mapstructure:"jitter"`
}

// ArchiveConfig contains failed-batch archive settings
type ArchiveConfig struct {
	Enabled     bool        `mapstructure:"enabled"`
	Backend     string      `mapstructure:"backend"`
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	BasePath    string      `mapstructure:"base_path"`
	File        FileConfig  `mapstructure:"file"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	SSEEnabled      bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID     string `mapstructure:"sse_kms_key_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// TracingConfig contains tracing settings
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the graceful shutdown deadline.
func (c ShutdownConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate validates every section of the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	for _, v := range []interface{ Validate() error }{
		&c.ClickHouse,
		&c.Kafka,
		&c.Converter,
		&c.Batching,
		&c.Retry,
		&c.Archive,
		&c.Observability,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the ClickHouse configuration.
func (c *ClickHouseConfig) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("clickhouse.hostname is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid clickhouse.port: %d", c.Port)
	}
	if c.TimeoutSeconds < 0 || c.TimeoutSeconds > 600 {
		return fmt.Errorf("clickhouse.timeout_seconds must be within 0..600, got %d", c.TimeoutSeconds)
	}
	if c.RetryCount < 3 || c.RetryCount > 10 {
		return fmt.Errorf("clickhouse.retry_count must be within 3..10, got %d", c.RetryCount)
	}
	if c.InsertQuorum < 0 {
		return fmt.Errorf("clickhouse.insert_quorum must not be negative, got %d", c.InsertQuorum)
	}
	if !slices.Contains([]string{"", "round_robin", "hash"}, c.EndpointSelection) {
		return fmt.Errorf("unsupported clickhouse.endpoint_selection: %s", c.EndpointSelection)
	}
	if !slices.Contains([]string{"", "murmur3"}, c.HashFunction) {
		return fmt.Errorf("unsupported clickhouse.hash_function: %s", c.HashFunction)
	}
	if !slices.Contains([]string{"", "none", "gzip", "zstd", "lz4"}, c.Compression) {
		return fmt.Errorf("unsupported clickhouse.compression: %s", c.Compression)
	}
	if !slices.Contains([]string{"", "first", "all"}, c.ValidationPolicy) {
		return fmt.Errorf("unsupported clickhouse.validation_policy: %s", c.ValidationPolicy)
	}
	if c.PipeBufferBytes < 0 {
		return fmt.Errorf("clickhouse.pipe_buffer_bytes must not be negative")
	}
	return nil
}

// Validate validates the Kafka configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka.bootstrap_servers is required")
	}
	if c.Consumer.GroupID == "" {
		return fmt.Errorf("kafka.consumer.group_id is required")
	}
	if len(c.Consumer.Topics) == 0 {
		return fmt.Errorf("kafka.consumer.topics is required")
	}
	if c.DLQ.Enabled && c.DLQ.TopicSuffix == "" {
		return fmt.Errorf("kafka.dlq.topic_suffix is required when the DLQ is enabled")
	}
	return nil
}

// Validate validates the converter configuration.
func (c *ConverterConfig) Validate() error {
	if !slices.Contains([]string{"connect_json", "json", "cloudevents"}, c.Format) {
		return fmt.Errorf("unsupported converter.format: %s", c.Format)
	}
	return nil
}

// Validate validates the batching configuration.
func (c *BatchingConfig) Validate() error {
	if c.MaxRecords <= 0 && c.MaxBytes <= 0 && c.MaxAgeMS <= 0 {
		return fmt.Errorf("batching needs at least one of max_records, max_bytes or max_age_ms")
	}
	if c.MaxRecords < 0 || c.MaxBytes < 0 || c.MaxAgeMS < 0 {
		return fmt.Errorf("batching limits must not be negative")
	}
	return nil
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoffMS < 0 || c.MaxBackoffMS < c.InitialBackoffMS {
		return fmt.Errorf("retry backoff must satisfy 0 <= initial_backoff_ms <= max_backoff_ms")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1, got %v", c.BackoffMultiplier)
	}
	return nil
}

// Validate validates the archive configuration. A disabled archive is
// always valid.
func (c *ArchiveConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Format != "parquet" && c.Format != "avro" {
		return fmt.Errorf("unsupported archive.format: %s", c.Format)
	}
	switch c.Backend {
	case "file":
		return c.File.Validate()
	case "s3":
		return c.S3.Validate()
	case "azure":
		return c.Azure.Validate()
	case "gcs":
		return c.GCS.Validate()
	default:
		return fmt.Errorf("unsupported archive.backend: %s", c.Backend)
	}
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required for S3 backend")
	}
	if c.Region == "" {
		return fmt.Errorf("archive.s3.region is required for S3 backend")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("archive.azure.account_name is required for Azure backend")
	}
	if c.Container == "" {
		return fmt.Errorf("archive.azure.container is required for Azure backend")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("archive.gcs.bucket is required for GCS backend")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("archive.file.base_path is required for file backend")
	}
	return nil
}

// Validate validates observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", c.Health.Port)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("observability.tracing.sample_rate must be within 0..1, got %v", c.Tracing.SampleRate)
	}
	return nil
}
