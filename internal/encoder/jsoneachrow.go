package encoder

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

// JSONEachRowEncoder writes one flat JSON object per line. It performs no
// validation against the table: unknown fields are kept for the server to
// skip and absent fields are left to server-side defaults.
type JSONEachRowEncoder struct{}

// NewJSONEachRowEncoder creates a new JSONEachRow encoder.
func NewJSONEachRowEncoder() *JSONEachRowEncoder {
	return &JSONEachRowEncoder{}
}

// Format returns encoder.FormatJSONEachRow.
func (e *JSONEachRowEncoder) Format() encoder.Format {
	return encoder.FormatJSONEachRow
}

// EncodeRow appends one newline-terminated JSON object to dst. SCHEMA records
// emit their declared fields in declaration order, SCHEMA_LESS records emit
// their keys sorted.
func (e *JSONEachRowEncoder) EncodeRow(dst []byte, tbl table.Table, rec *event.Record) ([]byte, error) {
	if rec.IsTombstone() {
		return dst, nil
	}

	names := rec.FieldNames()
	if rec.Mode != event.SchemaModeSchema || len(rec.Fields) == 0 {
		sort.Strings(names)
	}

	start := len(dst)
	dst = append(dst, '{')
	first := true
	for _, name := range names {
		d, ok := rec.Get(name)
		if !ok {
			continue
		}
		v, err := Native(d)
		if err != nil {
			return dst[:start], textError(err, tbl, name, d, rec)
		}
		if !first {
			dst = append(dst, ',')
		}
		first = false

		key, err := json.Marshal(name)
		if err != nil {
			return dst[:start], textError(err, tbl, name, d, rec)
		}
		dst = append(dst, key...)
		dst = append(dst, ':')

		val, err := json.Marshal(v)
		if err != nil {
			return dst[:start], textError(err, tbl, name, d, rec)
		}
		dst = append(dst, val...)
	}
	dst = append(dst, '}', '\n')
	return dst, nil
}

// EncodeBatch writes every non-tombstone record of batch to w.
func (e *JSONEachRowEncoder) EncodeBatch(w io.Writer, tbl table.Table, batch []event.Record) (int, error) {
	return encodeBatch(e, w, tbl, batch)
}

// Native converts a Data value to the plain Go value it serializes as.
// UUIDs become their canonical string and map keys are stringified.
func Native(d event.Data) (any, error) {
	switch v := d.(type) {
	case nil, event.Null:
		return nil, nil
	case event.Int8:
		return int64(v), nil
	case event.Int16:
		return int64(v), nil
	case event.Int32:
		return int64(v), nil
	case event.Int64:
		return int64(v), nil
	case event.Uint8:
		return uint64(v), nil
	case event.Uint16:
		return uint64(v), nil
	case event.Uint32:
		return uint64(v), nil
	case event.Uint64:
		return uint64(v), nil
	case event.Float32:
		return float32(v), nil
	case event.Float64:
		return float64(v), nil
	case event.Bool:
		return bool(v), nil
	case event.String:
		return string(v), nil
	case event.UUID:
		return uuid.UUID(v).String(), nil
	case event.List:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			n, err := Native(item)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return items, nil
	case event.Map:
		m := make(map[string]any, len(v.Entries))
		for _, entry := range v.Entries {
			k, err := mapKey(entry.Key)
			if err != nil {
				return nil, err
			}
			n, err := Native(entry.Value)
			if err != nil {
				return nil, err
			}
			m[k] = n
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported value %T", d)
}

func mapKey(d event.Data) (string, error) {
	switch v := d.(type) {
	case event.String:
		return string(v), nil
	case event.UUID:
		return uuid.UUID(v).String(), nil
	case event.Bool:
		return strconv.FormatBool(bool(v)), nil
	}
	if s, u, signed, ok := integerValue(d); ok {
		if signed {
			return strconv.FormatInt(s, 10), nil
		}
		return strconv.FormatUint(u, 10), nil
	}
	if d == nil {
		return "", fmt.Errorf("null map key")
	}
	return "", fmt.Errorf("unsupported map key %s", d.Type())
}

func textError(err error, tbl table.Table, name string, d event.Data, rec *event.Record) error {
	actual := "NULL"
	if d != nil {
		actual = d.Type().String()
	}
	return &errors.FieldError{
		Kind:     errors.ErrUnsupportedConversion,
		Table:    tbl.Name,
		Column:   name,
		Expected: "JSON value",
		Actual:   fmt.Sprintf("%s (%v)", actual, err),
		Position: rec.Position(),
	}
}
