package convert

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// JSONConverter reads a plain JSON object as a SCHEMA_LESS record.
type JSONConverter struct {
	format Format
}

// NewJSONConverter creates a plain JSON converter.
func NewJSONConverter() *JSONConverter {
	return &JSONConverter{format: FormatJSON}
}

// Format returns the format the converter was created for.
func (c *JSONConverter) Format() Format { return c.format }

// Convert decodes msg.Value as a JSON object.
func (c *JSONConverter) Convert(msg event.Message) (event.Record, error) {
	if msg.Value == nil {
		return tombstone(msg), nil
	}

	var obj map[string]any
	if err := decodeJSON(msg.Value, &obj); err != nil {
		return event.Record{}, conversionError(msg, c.format, err)
	}
	if obj == nil {
		return tombstone(msg), nil
	}

	values, err := schemalessValues(obj)
	if err != nil {
		return event.Record{}, conversionError(msg, c.format, err)
	}
	return event.Record{
		Topic:  msg.Metadata.Topic,
		Mode:   event.SchemaModeSchemaless,
		Values: values,
		Kafka:  msg.Metadata,
	}, nil
}

func schemalessValues(obj map[string]any) (map[string]event.Data, error) {
	values := make(map[string]event.Data, len(obj))
	for k, v := range obj {
		d, err := fromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		values[k] = d
	}
	return values, nil
}

// fromJSON maps a decoded JSON value to Data. Integral numbers become INT64
// (UINT64 above the int64 range), other numbers FLOAT64, arrays ARRAY and
// objects MAP keyed by STRING in key order.
func fromJSON(v any) (event.Data, error) {
	switch x := v.(type) {
	case nil:
		return event.Null{}, nil
	case bool:
		return event.Bool(x), nil
	case string:
		return event.String(x), nil
	case json.Number:
		return fromNumber(x)
	case []any:
		list := event.List{Items: make([]event.Data, 0, len(x))}
		for i, item := range x {
			d, err := fromJSON(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			if list.Elem == event.FieldUnknown && !event.IsNull(d) {
				list.Elem = d.Type()
			}
			list.Items = append(list.Items, d)
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		m := event.Map{Key: event.FieldString, Entries: make([]event.MapEntry, 0, len(x))}
		for _, k := range keys {
			d, err := fromJSON(x[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if m.Value == event.FieldUnknown && !event.IsNull(d) {
				m.Value = d.Type()
			}
			m.Entries = append(m.Entries, event.MapEntry{Key: event.String(k), Value: d})
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", v)
	}
}

func fromNumber(n json.Number) (event.Data, error) {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return event.Int64(i), nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return event.Uint64(u), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return event.Float64(f), nil
}
