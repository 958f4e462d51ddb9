package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/internal/leb128"
	"github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

// Nullable column markers.
const (
	markerValue byte = 0
	markerNull  byte = 1
)

// RowBinaryEncoder writes records in the destination's RowBinary format:
// columns in table order, fixed-width little-endian scalars, LEB128 length
// and count prefixes, and a one-byte marker before nullable columns.
type RowBinaryEncoder struct{}

// NewRowBinaryEncoder creates a new RowBinary encoder.
func NewRowBinaryEncoder() *RowBinaryEncoder {
	return &RowBinaryEncoder{}
}

// Format returns encoder.FormatRowBinary.
func (e *RowBinaryEncoder) Format() encoder.Format {
	return encoder.FormatRowBinary
}

// EncodeRow appends one row to dst. On failure dst is returned unchanged, so a
// row is either appended whole or not at all.
func (e *RowBinaryEncoder) EncodeRow(dst []byte, tbl table.Table, rec *event.Record) ([]byte, error) {
	if rec.IsTombstone() {
		return dst, nil
	}

	start := len(dst)
	for _, col := range tbl.Columns {
		var err error
		dst, err = appendColumn(dst, col, rec)
		if err != nil {
			return dst[:start], fieldError(err, tbl, col, rec)
		}
	}
	return dst, nil
}

// EncodeBatch writes every non-tombstone record of batch to w.
func (e *RowBinaryEncoder) EncodeBatch(w io.Writer, tbl table.Table, batch []event.Record) (int, error) {
	return encodeBatch(e, w, tbl, batch)
}

func encodeBatch(e encoder.RowEncoder, w io.Writer, tbl table.Table, batch []event.Record) (int, error) {
	buf := make([]byte, 0, 512)
	rows := 0
	for i := range batch {
		rec := &batch[i]
		if rec.IsTombstone() {
			continue
		}
		var err error
		buf, err = e.EncodeRow(buf[:0], tbl, rec)
		if err != nil {
			return rows, err
		}
		if _, err := w.Write(buf); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, nil
}

func appendColumn(dst []byte, col table.Column, rec *event.Record) ([]byte, error) {
	d, ok := rec.Get(col.Name)
	if !ok || event.IsNull(d) {
		if col.Nullable {
			return append(dst, markerNull), nil
		}
		return dst, errNull
	}

	if col.Nullable {
		dst = append(dst, markerValue)
	}

	switch col.Type {
	case table.Array:
		l, ok := d.(event.List)
		if !ok {
			return dst, conversion(col.TypeName(), d)
		}
		dst = leb128.Append(dst, uint64(len(l.Items)))
		for _, item := range l.Items {
			var err error
			if dst, err = appendScalar(dst, col.Elem, item); err != nil {
				return dst, err
			}
		}
		return dst, nil

	case table.Map:
		m, ok := d.(event.Map)
		if !ok {
			return dst, conversion(col.TypeName(), d)
		}
		dst = leb128.Append(dst, uint64(len(m.Entries)))
		for _, entry := range m.Entries {
			var err error
			if dst, err = appendScalar(dst, col.Key, entry.Key); err != nil {
				return dst, err
			}
			if dst, err = appendScalar(dst, col.Value, entry.Value); err != nil {
				return dst, err
			}
		}
		return dst, nil

	default:
		return appendScalar(dst, col.Type, d)
	}
}

func appendScalar(dst []byte, ct table.ColumnType, d event.Data) ([]byte, error) {
	if event.IsNull(d) {
		return dst, errNull
	}

	switch ct {
	case table.Int8, table.Int16, table.Int32, table.Int64,
		table.UInt8, table.UInt16, table.UInt32, table.UInt64:
		return appendInteger(dst, ct, d)

	case table.Float32:
		if v, ok := d.(event.Float32); ok {
			return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v))), nil
		}
	case table.Float64:
		switch v := d.(type) {
		case event.Float64:
			return binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(v))), nil
		case event.Float32:
			return binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(v))), nil
		}

	case table.Bool:
		if v, ok := d.(event.Bool); ok {
			if v {
				return append(dst, 1), nil
			}
			return append(dst, 0), nil
		}

	case table.String:
		if v, ok := d.(event.String); ok {
			dst = leb128.Append(dst, uint64(len(v)))
			return append(dst, string(v)...), nil
		}

	case table.UUID:
		switch v := d.(type) {
		case event.UUID:
			return appendUUID(dst, v), nil
		case event.String:
			u, err := uuid.Parse(string(v))
			if err != nil {
				return dst, &conversionErr{expected: ct.String(), actual: fmt.Sprintf("STRING(%q)", string(v))}
			}
			return appendUUID(dst, event.UUID(u)), nil
		}

	case table.Date, table.Date32, table.DateTime, table.DateTime64:
		return appendTemporal(dst, ct, d)
	}

	return dst, conversion(ct.String(), d)
}

// appendTemporal writes day counts and tick counts as-is. Only the matching
// integer width is accepted; no scale conversion is applied.
func appendTemporal(dst []byte, ct table.ColumnType, d event.Data) ([]byte, error) {
	switch ct {
	case table.Date:
		v, ok := d.(event.Int32)
		if !ok {
			break
		}
		if v < 0 || v > math.MaxUint16 {
			return dst, outOfRange(ct, d)
		}
		return binary.LittleEndian.AppendUint16(dst, uint16(v)), nil
	case table.Date32:
		if v, ok := d.(event.Int32); ok {
			return binary.LittleEndian.AppendUint32(dst, uint32(v)), nil
		}
	case table.DateTime:
		v, ok := d.(event.Int64)
		if !ok {
			break
		}
		if v < 0 || v > math.MaxUint32 {
			return dst, outOfRange(ct, d)
		}
		return binary.LittleEndian.AppendUint32(dst, uint32(v)), nil
	case table.DateTime64:
		if v, ok := d.(event.Int64); ok {
			return binary.LittleEndian.AppendUint64(dst, uint64(v)), nil
		}
	}
	return dst, conversion(ct.String(), d)
}

func appendInteger(dst []byte, ct table.ColumnType, d event.Data) ([]byte, error) {
	s, u, signed, ok := integerValue(d)
	if !ok {
		return dst, conversion(ct.String(), d)
	}

	if ct.IsSigned() {
		if !signed {
			if u > math.MaxInt64 {
				return dst, outOfRange(ct, d)
			}
			s = int64(u)
		}
		lo, hi := signedRange(ct)
		if s < lo || s > hi {
			return dst, outOfRange(ct, d)
		}
		switch ct {
		case table.Int8:
			return append(dst, byte(int8(s))), nil
		case table.Int16:
			return binary.LittleEndian.AppendUint16(dst, uint16(int16(s))), nil
		case table.Int32:
			return binary.LittleEndian.AppendUint32(dst, uint32(int32(s))), nil
		default:
			return binary.LittleEndian.AppendUint64(dst, uint64(s)), nil
		}
	}

	if signed {
		if s < 0 {
			return dst, outOfRange(ct, d)
		}
		u = uint64(s)
	}
	if u > unsignedMax(ct) {
		return dst, outOfRange(ct, d)
	}
	switch ct {
	case table.UInt8:
		return append(dst, byte(u)), nil
	case table.UInt16:
		return binary.LittleEndian.AppendUint16(dst, uint16(u)), nil
	case table.UInt32:
		return binary.LittleEndian.AppendUint32(dst, uint32(u)), nil
	default:
		return binary.LittleEndian.AppendUint64(dst, u), nil
	}
}

// integerValue extracts an integer tag as int64 (signed) or uint64.
func integerValue(d event.Data) (s int64, u uint64, signed bool, ok bool) {
	switch v := d.(type) {
	case event.Int8:
		return int64(v), 0, true, true
	case event.Int16:
		return int64(v), 0, true, true
	case event.Int32:
		return int64(v), 0, true, true
	case event.Int64:
		return int64(v), 0, true, true
	case event.Uint8:
		return 0, uint64(v), false, true
	case event.Uint16:
		return 0, uint64(v), false, true
	case event.Uint32:
		return 0, uint64(v), false, true
	case event.Uint64:
		return 0, uint64(v), false, true
	}
	return 0, 0, false, false
}

func signedRange(ct table.ColumnType) (int64, int64) {
	switch ct {
	case table.Int8:
		return math.MinInt8, math.MaxInt8
	case table.Int16:
		return math.MinInt16, math.MaxInt16
	case table.Int32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func unsignedMax(ct table.ColumnType) uint64 {
	switch ct {
	case table.UInt8:
		return math.MaxUint8
	case table.UInt16:
		return math.MaxUint16
	case table.UInt32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// appendUUID writes the two 64-bit halves of u, each little-endian.
func appendUUID(dst []byte, u event.UUID) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, binary.BigEndian.Uint64(u[:8]))
	return binary.LittleEndian.AppendUint64(dst, binary.BigEndian.Uint64(u[8:]))
}

var errNull = errors.ErrMissingRequiredField

type conversionErr struct {
	expected string
	actual   string
}

func (e *conversionErr) Error() string {
	return fmt.Sprintf("no conversion from %s to %s", e.actual, e.expected)
}

func conversion(expected string, d event.Data) error {
	return &conversionErr{expected: expected, actual: d.Type().String()}
}

func outOfRange(ct table.ColumnType, d event.Data) error {
	return &conversionErr{expected: ct.String(), actual: fmt.Sprintf("%s(%v) out of range", d.Type(), d)}
}

// fieldError attaches table, column and position to a scalar failure.
func fieldError(err error, tbl table.Table, col table.Column, rec *event.Record) error {
	fe := &errors.FieldError{
		Table:    tbl.Name,
		Column:   col.Name,
		Expected: col.TypeName(),
		Position: rec.Position(),
	}
	if ce, ok := err.(*conversionErr); ok {
		fe.Kind = errors.ErrUnsupportedConversion
		fe.Expected = ce.expected
		fe.Actual = ce.actual
		return fe
	}
	fe.Kind = errors.ErrMissingRequiredField
	fe.Expected = ""
	return fe
}
