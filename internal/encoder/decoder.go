package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/jittakal/kafeventsink/internal/leb128"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

var ErrShortBuffer = errors.New("rowbinary: short buffer")

// RowBinaryDecoder reads rows written by RowBinaryEncoder back into Data
// values. Each column decodes to the tag FieldTypeFor reports for its type.
type RowBinaryDecoder struct{}

// NewRowBinaryDecoder creates a new RowBinary decoder.
func NewRowBinaryDecoder() *RowBinaryDecoder {
	return &RowBinaryDecoder{}
}

// DecodeRow decodes one row from buf and returns the unread remainder.
func (d *RowBinaryDecoder) DecodeRow(tbl table.Table, buf []byte) (map[string]event.Data, []byte, error) {
	row := make(map[string]event.Data, len(tbl.Columns))
	for _, col := range tbl.Columns {
		if col.Nullable {
			if len(buf) < 1 {
				return nil, buf, ErrShortBuffer
			}
			marker := buf[0]
			buf = buf[1:]
			if marker == markerNull {
				row[col.Name] = event.Null{Of: FieldTypeFor(col.Type)}
				continue
			}
		}

		var (
			v   event.Data
			err error
		)
		switch col.Type {
		case table.Array:
			v, buf, err = decodeArray(col, buf)
		case table.Map:
			v, buf, err = decodeMap(col, buf)
		default:
			v, buf, err = decodeScalar(col.Type, buf)
		}
		if err != nil {
			return nil, buf, fmt.Errorf("column %s: %w", col.Name, err)
		}
		row[col.Name] = v
	}
	return row, buf, nil
}

// DecodeAll decodes rows until buf is exhausted.
func (d *RowBinaryDecoder) DecodeAll(tbl table.Table, buf []byte) ([]map[string]event.Data, error) {
	var rows []map[string]event.Data
	for len(buf) > 0 {
		row, rest, err := d.DecodeRow(tbl, buf)
		if err != nil {
			return rows, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
		buf = rest
	}
	return rows, nil
}

func decodeArray(col table.Column, buf []byte) (event.Data, []byte, error) {
	n, buf, err := readCount(buf)
	if err != nil {
		return nil, buf, err
	}
	l := event.List{Elem: FieldTypeFor(col.Elem), Items: make([]event.Data, 0, n)}
	for i := uint64(0); i < n; i++ {
		var item event.Data
		if item, buf, err = decodeScalar(col.Elem, buf); err != nil {
			return nil, buf, err
		}
		l.Items = append(l.Items, item)
	}
	return l, buf, nil
}

func decodeMap(col table.Column, buf []byte) (event.Data, []byte, error) {
	n, buf, err := readCount(buf)
	if err != nil {
		return nil, buf, err
	}
	m := event.Map{Key: FieldTypeFor(col.Key), Value: FieldTypeFor(col.Value), Entries: make([]event.MapEntry, 0, n)}
	for i := uint64(0); i < n; i++ {
		var k, v event.Data
		if k, buf, err = decodeScalar(col.Key, buf); err != nil {
			return nil, buf, err
		}
		if v, buf, err = decodeScalar(col.Value, buf); err != nil {
			return nil, buf, err
		}
		m.Entries = append(m.Entries, event.MapEntry{Key: k, Value: v})
	}
	return m, buf, nil
}

func readCount(buf []byte) (uint64, []byte, error) {
	n, size := leb128.Uvarint(buf)
	if size == 0 {
		return 0, buf, ErrShortBuffer
	}
	if size < 0 {
		return 0, buf, leb128.ErrOverflow
	}
	buf = buf[size:]
	// every element takes at least one byte
	if n > uint64(len(buf)) {
		return 0, buf, ErrShortBuffer
	}
	return n, buf, nil
}

func decodeScalar(ct table.ColumnType, buf []byte) (event.Data, []byte, error) {
	if ct == table.String {
		n, rest, err := readCount(buf)
		if err != nil {
			return nil, buf, err
		}
		return event.String(rest[:n]), rest[n:], nil
	}

	w := ct.Width()
	if w == 0 {
		return nil, buf, fmt.Errorf("rowbinary: cannot decode %s", ct)
	}
	if len(buf) < w {
		return nil, buf, ErrShortBuffer
	}
	b, rest := buf[:w], buf[w:]

	le := binary.LittleEndian
	switch ct {
	case table.Int8:
		return event.Int8(int8(b[0])), rest, nil
	case table.Int16:
		return event.Int16(int16(le.Uint16(b))), rest, nil
	case table.Int32:
		return event.Int32(int32(le.Uint32(b))), rest, nil
	case table.Int64:
		return event.Int64(int64(le.Uint64(b))), rest, nil
	case table.UInt8:
		return event.Uint8(b[0]), rest, nil
	case table.UInt16:
		return event.Uint16(le.Uint16(b)), rest, nil
	case table.UInt32:
		return event.Uint32(le.Uint32(b)), rest, nil
	case table.UInt64:
		return event.Uint64(le.Uint64(b)), rest, nil
	case table.Float32:
		return event.Float32(math.Float32frombits(le.Uint32(b))), rest, nil
	case table.Float64:
		return event.Float64(math.Float64frombits(le.Uint64(b))), rest, nil
	case table.Bool:
		return event.Bool(b[0] != 0), rest, nil
	case table.UUID:
		var u event.UUID
		binary.BigEndian.PutUint64(u[:8], le.Uint64(b[:8]))
		binary.BigEndian.PutUint64(u[8:], le.Uint64(b[8:]))
		return u, rest, nil
	case table.Date:
		return event.Int32(le.Uint16(b)), rest, nil
	case table.Date32:
		return event.Int32(int32(le.Uint32(b))), rest, nil
	case table.DateTime:
		return event.Int64(le.Uint32(b)), rest, nil
	case table.DateTime64:
		return event.Int64(int64(le.Uint64(b))), rest, nil
	}
	return nil, buf, fmt.Errorf("rowbinary: cannot decode %s", ct)
}

// FieldTypeFor returns the tag a column type decodes to and the tag the
// binary path expects for an exact match.
func FieldTypeFor(ct table.ColumnType) event.FieldType {
	switch ct {
	case table.Int8:
		return event.FieldInt8
	case table.Int16:
		return event.FieldInt16
	case table.Int32, table.Date, table.Date32:
		return event.FieldInt32
	case table.Int64, table.DateTime, table.DateTime64:
		return event.FieldInt64
	case table.UInt8:
		return event.FieldUint8
	case table.UInt16:
		return event.FieldUint16
	case table.UInt32:
		return event.FieldUint32
	case table.UInt64:
		return event.FieldUint64
	case table.Float32:
		return event.FieldFloat32
	case table.Float64:
		return event.FieldFloat64
	case table.Bool:
		return event.FieldBoolean
	case table.String:
		return event.FieldString
	case table.UUID:
		return event.FieldUUID
	case table.Array:
		return event.FieldArray
	case table.Map:
		return event.FieldMap
	default:
		return event.FieldUnknown
	}
}
