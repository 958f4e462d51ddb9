package convert

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Connect logical type names.
const (
	logicalDate      = "org.apache.kafka.connect.data.Date"
	logicalTime      = "org.apache.kafka.connect.data.Time"
	logicalTimestamp = "org.apache.kafka.connect.data.Timestamp"
	logicalDecimal   = "org.apache.kafka.connect.data.Decimal"
)

var uuidNames = map[string]bool{
	"uuid":                  true,
	"io.debezium.data.Uuid": true,
}

type connectSchema struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Optional bool            `json:"optional"`
	Field    string          `json:"field,omitempty"`
	Fields   []connectSchema `json:"fields,omitempty"`
	Items    *connectSchema  `json:"items,omitempty"`
	Keys     *connectSchema  `json:"keys,omitempty"`
	Values   *connectSchema  `json:"values,omitempty"`
}

type connectEnvelope struct {
	Schema  *connectSchema  `json:"schema"`
	Payload json.RawMessage `json:"payload"`
}

// ConnectConverter reads Kafka Connect JSON messages with an embedded
// schema. The top-level schema must be a struct; its fields become the
// record's declared fields.
type ConnectConverter struct{}

// NewConnectConverter creates a Connect JSON converter.
func NewConnectConverter() *ConnectConverter {
	return &ConnectConverter{}
}

// Format returns FormatConnectJSON.
func (c *ConnectConverter) Format() Format { return FormatConnectJSON }

// Convert decodes the envelope and types the payload by its schema.
func (c *ConnectConverter) Convert(msg event.Message) (event.Record, error) {
	if msg.Value == nil {
		return tombstone(msg), nil
	}

	var env connectEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return event.Record{}, conversionError(msg, FormatConnectJSON, err)
	}
	if env.Schema == nil {
		return event.Record{}, conversionError(msg, FormatConnectJSON, fmt.Errorf("missing schema in envelope"))
	}
	if env.Schema.Type != "struct" {
		return event.Record{}, conversionError(msg, FormatConnectJSON,
			fmt.Errorf("top-level schema must be a struct, got %s", env.Schema.Type))
	}

	rec := event.Record{
		Topic:  msg.Metadata.Topic,
		Mode:   event.SchemaModeSchema,
		Fields: make([]event.Field, 0, len(env.Schema.Fields)),
		Kafka:  msg.Metadata,
	}
	for i := range env.Schema.Fields {
		f := &env.Schema.Fields[i]
		ft, err := fieldType(f)
		if err != nil {
			return event.Record{}, conversionError(msg, FormatConnectJSON, fmt.Errorf("field %q: %w", f.Field, err))
		}
		rec.Fields = append(rec.Fields, event.Field{Name: f.Field, Type: ft, Optional: f.Optional})
	}

	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return rec, nil
	}

	var payload map[string]any
	if err := decodeJSON(env.Payload, &payload); err != nil {
		return event.Record{}, conversionError(msg, FormatConnectJSON, fmt.Errorf("payload: %w", err))
	}

	rec.Values = make(map[string]event.Data, len(payload))
	for i := range env.Schema.Fields {
		f := &env.Schema.Fields[i]
		v, ok := payload[f.Field]
		if !ok {
			continue
		}
		d, err := typed(f, v)
		if err != nil {
			return event.Record{}, conversionError(msg, FormatConnectJSON, fmt.Errorf("field %q: %w", f.Field, err))
		}
		rec.Values[f.Field] = d
	}
	return rec, nil
}

// fieldType maps a Connect schema to its value tag.
func fieldType(s *connectSchema) (event.FieldType, error) {
	switch s.Name {
	case logicalDate, logicalTime:
		return event.FieldInt32, nil
	case logicalTimestamp:
		return event.FieldInt64, nil
	case logicalDecimal:
		return event.FieldUnknown, fmt.Errorf("logical type %s is not supported", s.Name)
	}
	if uuidNames[s.Name] {
		return event.FieldUUID, nil
	}

	switch s.Type {
	case "int8":
		return event.FieldInt8, nil
	case "int16":
		return event.FieldInt16, nil
	case "int32":
		return event.FieldInt32, nil
	case "int64":
		return event.FieldInt64, nil
	case "uint8":
		return event.FieldUint8, nil
	case "uint16":
		return event.FieldUint16, nil
	case "uint32":
		return event.FieldUint32, nil
	case "uint64":
		return event.FieldUint64, nil
	case "float", "float32":
		return event.FieldFloat32, nil
	case "double", "float64":
		return event.FieldFloat64, nil
	case "boolean":
		return event.FieldBoolean, nil
	case "string", "bytes":
		return event.FieldString, nil
	case "array":
		if s.Items == nil {
			return event.FieldUnknown, fmt.Errorf("array schema without items")
		}
		return event.FieldArray, nil
	case "map":
		if s.Keys == nil || s.Values == nil {
			return event.FieldUnknown, fmt.Errorf("map schema without keys or values")
		}
		return event.FieldMap, nil
	case "struct":
		return event.FieldUnknown, fmt.Errorf("nested struct is not supported")
	default:
		return event.FieldUnknown, fmt.Errorf("unknown schema type %q", s.Type)
	}
}

// typed converts a decoded payload value according to its schema.
func typed(s *connectSchema, v any) (event.Data, error) {
	ft, err := fieldType(s)
	if err != nil {
		return nil, err
	}
	if v == nil {
		// Required-ness is checked against the table, not here.
		return event.Null{Of: ft}, nil
	}

	switch ft {
	case event.FieldInt8, event.FieldInt16, event.FieldInt32, event.FieldInt64:
		return signed(ft, v)
	case event.FieldUint8, event.FieldUint16, event.FieldUint32, event.FieldUint64:
		return unsigned(ft, v)
	case event.FieldFloat32, event.FieldFloat64:
		n, ok := v.(json.Number)
		if !ok {
			return nil, mismatch(ft, v)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		if ft == event.FieldFloat32 {
			return event.Float32(f), nil
		}
		return event.Float64(f), nil
	case event.FieldBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(ft, v)
		}
		return event.Bool(b), nil
	case event.FieldString:
		str, ok := v.(string)
		if !ok {
			return nil, mismatch(ft, v)
		}
		if s.Type == "bytes" {
			raw, err := base64.StdEncoding.DecodeString(str)
			if err != nil {
				return nil, fmt.Errorf("invalid base64 bytes: %w", err)
			}
			return event.String(raw), nil
		}
		return event.String(str), nil
	case event.FieldUUID:
		str, ok := v.(string)
		if !ok {
			return nil, mismatch(ft, v)
		}
		u, err := uuid.Parse(str)
		if err != nil {
			return nil, err
		}
		return event.UUID(u), nil
	case event.FieldArray:
		items, ok := v.([]any)
		if !ok {
			return nil, mismatch(ft, v)
		}
		elem, err := fieldType(s.Items)
		if err != nil {
			return nil, err
		}
		list := event.List{Elem: elem, Items: make([]event.Data, len(items))}
		for i, item := range items {
			if list.Items[i], err = typed(s.Items, item); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return list, nil
	case event.FieldMap:
		return typedMap(s, v)
	}
	return nil, mismatch(ft, v)
}

// typedMap accepts both Connect map encodings: a JSON object for string keys
// and an array of [key, value] pairs otherwise.
func typedMap(s *connectSchema, v any) (event.Data, error) {
	kt, err := fieldType(s.Keys)
	if err != nil {
		return nil, err
	}
	vt, err := fieldType(s.Values)
	if err != nil {
		return nil, err
	}
	m := event.Map{Key: kt, Value: vt}

	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key, err := typed(s.Keys, mapKeyValue(kt, k))
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			val, err := typed(s.Values, x[k])
			if err != nil {
				return nil, fmt.Errorf("value %q: %w", k, err)
			}
			m.Entries = append(m.Entries, event.MapEntry{Key: key, Value: val})
		}
	case []any:
		for i, pair := range x {
			kv, ok := pair.([]any)
			if !ok || len(kv) != 2 {
				return nil, fmt.Errorf("entry %d: expected [key, value] pair", i)
			}
			key, err := typed(s.Keys, kv[0])
			if err != nil {
				return nil, fmt.Errorf("entry %d key: %w", i, err)
			}
			val, err := typed(s.Values, kv[1])
			if err != nil {
				return nil, fmt.Errorf("entry %d value: %w", i, err)
			}
			m.Entries = append(m.Entries, event.MapEntry{Key: key, Value: val})
		}
	default:
		return nil, mismatch(event.FieldMap, v)
	}
	return m, nil
}

// mapKeyValue turns an object key back into the JSON value its schema
// expects, so numeric keys go through the number path.
func mapKeyValue(kt event.FieldType, k string) any {
	switch kt {
	case event.FieldString, event.FieldUUID:
		return k
	case event.FieldBoolean:
		if b, err := strconv.ParseBool(k); err == nil {
			return b
		}
		return k
	default:
		return json.Number(k)
	}
}

func signed(ft event.FieldType, v any) (event.Data, error) {
	n, ok := v.(json.Number)
	if !ok {
		return nil, mismatch(ft, v)
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", ft, n, err)
	}
	switch ft {
	case event.FieldInt8:
		if i < math.MinInt8 || i > math.MaxInt8 {
			return nil, outOfRange(ft, n)
		}
		return event.Int8(i), nil
	case event.FieldInt16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, outOfRange(ft, n)
		}
		return event.Int16(i), nil
	case event.FieldInt32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, outOfRange(ft, n)
		}
		return event.Int32(i), nil
	default:
		return event.Int64(i), nil
	}
}

func unsigned(ft event.FieldType, v any) (event.Data, error) {
	n, ok := v.(json.Number)
	if !ok {
		return nil, mismatch(ft, v)
	}
	bits := map[event.FieldType]int{
		event.FieldUint8:  8,
		event.FieldUint16: 16,
		event.FieldUint32: 32,
		event.FieldUint64: 64,
	}[ft]
	u, err := strconv.ParseUint(n.String(), 10, bits)
	if err != nil {
		return nil, outOfRange(ft, n)
	}
	switch ft {
	case event.FieldUint8:
		return event.Uint8(u), nil
	case event.FieldUint16:
		return event.Uint16(u), nil
	case event.FieldUint32:
		return event.Uint32(u), nil
	default:
		return event.Uint64(u), nil
	}
}

func mismatch(ft event.FieldType, v any) error {
	return fmt.Errorf("expected %s, got JSON %T", ft, v)
}

func outOfRange(ft event.FieldType, n json.Number) error {
	return fmt.Errorf("value %s out of range for %s", n, ft)
}
