// Package convert turns raw Kafka messages into records the insert path can
// encode. Three message formats are supported: Kafka Connect JSON with a
// schema envelope, plain JSON objects and structured-mode CloudEvents.
package convert

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Format names a message format.
type Format string

const (
	FormatConnectJSON Format = "connect_json"
	FormatJSON        Format = "json"
	FormatCloudEvents Format = "cloudevents"
)

// SupportedFormats returns the accepted format names.
func SupportedFormats() []Format {
	return []Format{FormatConnectJSON, FormatJSON, FormatCloudEvents}
}

// Converter decodes one message into a record. A message with a nil value
// becomes a tombstone record.
type Converter interface {
	Convert(msg event.Message) (event.Record, error)
	Format() Format
}

// Config selects and tunes a converter.
type Config struct {
	Format Format
	// SchemasEnable expects the {"schema","payload"} envelope for
	// connect_json. When false connect_json messages are read as plain JSON.
	SchemasEnable bool
}

// New creates the converter for cfg.Format.
func New(cfg Config) (Converter, error) {
	switch cfg.Format {
	case FormatConnectJSON, "":
		if !cfg.SchemasEnable {
			return &JSONConverter{format: FormatConnectJSON}, nil
		}
		return NewConnectConverter(), nil
	case FormatJSON:
		return NewJSONConverter(), nil
	case FormatCloudEvents:
		return NewCloudEventsConverter(), nil
	default:
		return nil, fmt.Errorf("unsupported converter format %q (supported: %v)", cfg.Format, SupportedFormats())
	}
}

func tombstone(msg event.Message) event.Record {
	return event.Record{
		Topic: msg.Metadata.Topic,
		Mode:  event.SchemaModeSchemaless,
		Kafka: msg.Metadata,
	}
}

func conversionError(msg event.Message, format Format, err error) error {
	return &errors.ConversionError{
		PartitionID: msg.Metadata.PartitionID(),
		Offset:      msg.Metadata.Offset,
		Format:      string(format),
		Err:         err,
	}
}

// decodeJSON decodes b keeping numbers as json.Number so integers survive
// without a float64 round trip.
func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level value")
	}
	return nil
}
