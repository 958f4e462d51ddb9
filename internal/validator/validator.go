// Package validator checks decoded records against a destination table's
// column contract before the binary insert path commits to a batch.
package validator

import (
	"fmt"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

// Policy selects how many records of a batch are validated.
type Policy string

const (
	// PolicyFirst validates only the first record of a batch. Later records
	// that violate the contract fail during encoding instead, after some
	// bytes may already have been streamed.
	PolicyFirst Policy = "first"
	// PolicyAll validates every record before any byte is streamed.
	PolicyAll Policy = "all"
)

// ParsePolicy parses a configured policy name. The empty string means PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyAll:
		return PolicyAll, nil
	default:
		return "", fmt.Errorf("unknown validation policy %q (supported: first, all)", s)
	}
}

// Result holds the violations found for one record.
type Result struct {
	Table      string
	Position   string
	Violations []error
}

// Valid reports whether no violation was found.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns nil for a valid result, otherwise a *errors.SchemaError.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &errors.SchemaError{Table: r.Table, Position: r.Position, Violations: r.Violations}
}

// SchemaValidator validates records against table column contracts.
type SchemaValidator struct{}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate checks that every non-nullable column has a non-null value in rec.
// Unless namesOnly is set it also checks each present value's type tag against
// the column type.
func (v *SchemaValidator) Validate(tbl table.Table, rec *event.Record, namesOnly bool) Result {
	res := Result{Table: tbl.Name, Position: rec.Position()}

	for _, col := range tbl.Columns {
		d, ok := rec.Get(col.Name)
		if !ok || event.IsNull(d) {
			if !col.Nullable {
				res.Violations = append(res.Violations, &errors.FieldError{
					Kind:     errors.ErrMissingRequiredField,
					Table:    tbl.Name,
					Column:   col.Name,
					Position: res.Position,
				})
			}
			continue
		}

		if namesOnly {
			continue
		}

		if !Compatible(col.Type, d.Type()) {
			res.Violations = append(res.Violations, &errors.FieldError{
				Kind:     errors.ErrTypeMismatch,
				Table:    tbl.Name,
				Column:   col.Name,
				Expected: col.TypeName(),
				Actual:   d.Type().String(),
				Position: res.Position,
			})
		}
	}

	return res
}

// ValidateBatch applies the policy to a batch and returns the first failing
// record's error. Tombstones are not validated.
func (v *SchemaValidator) ValidateBatch(tbl table.Table, batch []event.Record, policy Policy) error {
	for i := range batch {
		rec := &batch[i]
		if rec.IsTombstone() {
			continue
		}
		if err := v.Validate(tbl, rec, false).Err(); err != nil {
			return err
		}
		if policy != PolicyAll {
			return nil
		}
	}
	return nil
}

// Compatible reports whether a value tagged ft may be written to a column of
// type ct.
func Compatible(ct table.ColumnType, ft event.FieldType) bool {
	switch ct {
	case table.Date, table.Date32:
		return ft == event.FieldInt32 || ft == event.FieldString
	case table.DateTime, table.DateTime64:
		return ft == event.FieldInt64 || ft == event.FieldString
	case table.UUID:
		return ft == event.FieldUUID || ft == event.FieldString
	case table.Int8:
		return ft == event.FieldInt8
	case table.Int16:
		return ft == event.FieldInt16
	case table.Int32:
		return ft == event.FieldInt32
	case table.Int64:
		return ft == event.FieldInt64
	case table.UInt8:
		return ft == event.FieldUint8
	case table.UInt16:
		return ft == event.FieldUint16
	case table.UInt32:
		return ft == event.FieldUint32
	case table.UInt64:
		return ft == event.FieldUint64
	case table.Float32:
		return ft == event.FieldFloat32
	case table.Float64:
		return ft == event.FieldFloat64
	case table.Bool:
		return ft == event.FieldBoolean
	case table.String:
		return ft == event.FieldString
	case table.Array:
		return ft == event.FieldArray
	case table.Map:
		return ft == event.FieldMap
	case table.Unknown:
		return false
	default:
		return false
	}
}
