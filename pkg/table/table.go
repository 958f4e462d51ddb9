package table

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnType is the closed set of destination column kinds the sink can encode.
type ColumnType uint8

const (
	Unknown ColumnType = iota
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	Bool
	String
	UUID
	Date
	Date32
	DateTime
	DateTime64
	Array
	Map
)

type kind uint8

const (
	kindInvalid kind = iota
	kindSigned
	kindUnsigned
	kindFloat
	kindBool
	kindString
	kindUUID
	kindTemporal
	kindContainer
)

// typeInfo is one row of the behaviour table.
type typeInfo struct {
	name  string
	width int
	kind  kind
}

var typeTable = [...]typeInfo{
	Unknown:    {"Unknown", 0, kindInvalid},
	Int8:       {"Int8", 1, kindSigned},
	Int16:      {"Int16", 2, kindSigned},
	Int32:      {"Int32", 4, kindSigned},
	Int64:      {"Int64", 8, kindSigned},
	UInt8:      {"UInt8", 1, kindUnsigned},
	UInt16:     {"UInt16", 2, kindUnsigned},
	UInt32:     {"UInt32", 4, kindUnsigned},
	UInt64:     {"UInt64", 8, kindUnsigned},
	Float32:    {"Float32", 4, kindFloat},
	Float64:    {"Float64", 8, kindFloat},
	Bool:       {"Bool", 1, kindBool},
	String:     {"String", 0, kindString},
	UUID:       {"UUID", 16, kindUUID},
	Date:       {"Date", 2, kindTemporal},
	Date32:     {"Date32", 4, kindTemporal},
	DateTime:   {"DateTime", 4, kindTemporal},
	DateTime64: {"DateTime64", 8, kindTemporal},
	Array:      {"Array", 0, kindContainer},
	Map:        {"Map", 0, kindContainer},
}

func (t ColumnType) info() typeInfo {
	if int(t) < len(typeTable) {
		return typeTable[t]
	}
	return typeTable[Unknown]
}

// String returns the ClickHouse spelling of the type.
func (t ColumnType) String() string { return t.info().name }

// Width returns the fixed encoded width in bytes, or 0 for variable-width types.
func (t ColumnType) Width() int { return t.info().width }

// IsInteger reports whether t is a signed or unsigned integer type.
func (t ColumnType) IsInteger() bool {
	k := t.info().kind
	return k == kindSigned || k == kindUnsigned
}

// IsSigned reports whether t is a signed integer type.
func (t ColumnType) IsSigned() bool { return t.info().kind == kindSigned }

// IsFloat reports whether t is Float32 or Float64.
func (t ColumnType) IsFloat() bool { return t.info().kind == kindFloat }

// IsTemporal reports whether t is one of the date/time types.
func (t ColumnType) IsTemporal() bool { return t.info().kind == kindTemporal }

// IsContainer reports whether t is Array or Map.
func (t ColumnType) IsContainer() bool { return t.info().kind == kindContainer }

// IsScalar reports whether t may appear as an Array element or a Map key/value.
func (t ColumnType) IsScalar() bool {
	k := t.info().kind
	return k != kindInvalid && k != kindContainer
}

// Column describes one destination column. Elem is set for Array columns,
// Key and Value for Map columns.
type Column struct {
	Name        string
	Type        ColumnType
	Nullable    bool
	Elem        ColumnType
	Key         ColumnType
	Value       ColumnType
	HasDefault  bool
	DefaultKind string
	// Raw is the catalog's type expression, kept for diagnostics.
	Raw string
}

// TypeName renders the column type the way the catalog spells it.
func (c Column) TypeName() string {
	var base string
	switch c.Type {
	case Array:
		base = fmt.Sprintf("Array(%s)", c.Elem)
	case Map:
		base = fmt.Sprintf("Map(%s, %s)", c.Key, c.Value)
	case Unknown:
		if c.Raw != "" {
			return c.Raw
		}
		base = c.Type.String()
	default:
		base = c.Type.String()
	}
	if c.Nullable {
		return "Nullable(" + base + ")"
	}
	return base
}

// Table is the ordered column contract of one destination table.
type Table struct {
	Name     string
	Database string
	Columns  []Column
}

// HasDefaults reports whether any column carries a server-side default expression.
func (t Table) HasDefaults() bool {
	for _, c := range t.Columns {
		if c.HasDefault {
			return true
		}
	}
	return false
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in table order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog is an immutable snapshot of destination tables keyed by name.
// It is never mutated after NewCatalog returns.
type Catalog struct {
	tables map[string]Table
}

// NewCatalog builds a snapshot. Later tables with a duplicate name win.
func NewCatalog(tables []Table) *Catalog {
	m := make(map[string]Table, len(tables))
	for _, t := range tables {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		t.Columns = cols
		m[t.Name] = t
	}
	return &Catalog{tables: m}
}

// Lookup returns the table with the given name.
func (c *Catalog) Lookup(name string) (Table, bool) {
	if c == nil {
		return Table{}, false
	}
	t, ok := c.tables[name]
	return t, ok
}

// Len returns the number of tables in the snapshot.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// Names returns the table names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tables returns a copy of every table, sorted by name.
func (c *Catalog) Tables() []Table {
	names := c.Names()
	out := make([]Table, 0, len(names))
	for _, n := range names {
		out = append(out, c.tables[n])
	}
	return out
}

// Describe renders a table as "name(col Type, ...)" for logs.
func (t Table) Describe() string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteByte('(')
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(c.TypeName())
		if c.HasDefault {
			b.WriteByte(' ')
			b.WriteString(c.DefaultKind)
		}
	}
	b.WriteByte(')')
	return b.String()
}
