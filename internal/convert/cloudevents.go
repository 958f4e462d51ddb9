package convert

import (
	"fmt"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// CloudEvents attribute columns added to every record.
const (
	AttrID      = "ce_id"
	AttrSource  = "ce_source"
	AttrType    = "ce_type"
	AttrTime    = "ce_time"
	AttrSubject = "ce_subject"
)

// CloudEventsConverter reads structured-mode CloudEvents. The JSON object in
// data becomes the record values, alongside the event's core attributes.
type CloudEventsConverter struct{}

// NewCloudEventsConverter creates a CloudEvents converter.
func NewCloudEventsConverter() *CloudEventsConverter {
	return &CloudEventsConverter{}
}

// Format returns FormatCloudEvents.
func (c *CloudEventsConverter) Format() Format { return FormatCloudEvents }

// Convert decodes and validates the event and flattens its data.
func (c *CloudEventsConverter) Convert(msg event.Message) (event.Record, error) {
	if msg.Value == nil {
		return tombstone(msg), nil
	}

	ce := cloudevents.NewEvent()
	if err := ce.UnmarshalJSON(msg.Value); err != nil {
		return event.Record{}, conversionError(msg, FormatCloudEvents, fmt.Errorf("failed to unmarshal cloud event: %w", err))
	}
	if err := ce.Validate(); err != nil {
		return event.Record{}, conversionError(msg, FormatCloudEvents, fmt.Errorf("invalid cloud event: %w", err))
	}

	values := map[string]event.Data{}
	if data := ce.Data(); len(data) > 0 {
		if ct := ce.DataContentType(); ct != "" && !strings.Contains(ct, "json") {
			return event.Record{}, conversionError(msg, FormatCloudEvents,
				fmt.Errorf("unsupported data content type %q", ct))
		}
		var obj map[string]any
		if err := decodeJSON(data, &obj); err != nil {
			return event.Record{}, conversionError(msg, FormatCloudEvents, fmt.Errorf("data: %w", err))
		}
		var err error
		if values, err = schemalessValues(obj); err != nil {
			return event.Record{}, conversionError(msg, FormatCloudEvents, err)
		}
	}

	values[AttrID] = event.String(ce.ID())
	values[AttrSource] = event.String(ce.Source())
	values[AttrType] = event.String(ce.Type())
	if t := ce.Time(); !t.IsZero() {
		values[AttrTime] = event.Int64(t.Unix())
	}
	if s := ce.Subject(); s != "" {
		values[AttrSubject] = event.String(s)
	}

	return event.Record{
		Topic:  msg.Metadata.Topic,
		Mode:   event.SchemaModeSchemaless,
		Values: values,
		Kafka:  msg.Metadata,
	}, nil
}
