package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColumn(t *testing.T) {
	tests := []struct {
		expr     string
		want     ColumnType
		nullable bool
		elem     ColumnType
		key      ColumnType
		value    ColumnType
	}{
		{expr: "UInt32", want: UInt32},
		{expr: "Nullable(String)", want: String, nullable: true},
		{expr: "LowCardinality(String)", want: String},
		{expr: "LowCardinality(Nullable(String))", want: String, nullable: true},
		{expr: "DateTime('UTC')", want: DateTime},
		{expr: "DateTime64(3)", want: DateTime64},
		{expr: "Nullable(DateTime64(6, 'Europe/Berlin'))", want: DateTime64, nullable: true},
		{expr: "Date32", want: Date32},
		{expr: "UUID", want: UUID},
		{expr: "Bool", want: Bool},
		{expr: "Array(String)", want: Array, elem: String},
		{expr: "Array(LowCardinality(String))", want: Array, elem: String},
		{expr: "Map(String, UInt64)", want: Map, key: String, value: UInt64},
		{expr: "Decimal(10, 2)", want: Unknown},
		{expr: "Array(Array(String))", want: Unknown},
		{expr: "Map(String, Array(String))", want: Unknown},
		{expr: "Tuple(a String, b Int8)", want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			col := ParseColumn("c", tt.expr, "")
			assert.Equal(t, tt.want, col.Type)
			assert.Equal(t, tt.nullable, col.Nullable)
			assert.Equal(t, tt.elem, col.Elem)
			assert.Equal(t, tt.key, col.Key)
			assert.Equal(t, tt.value, col.Value)
			assert.Equal(t, tt.expr, col.Raw)
		})
	}
}

func TestParseColumn_Default(t *testing.T) {
	col := ParseColumn("created_at", "DateTime", "DEFAULT")
	assert.True(t, col.HasDefault)
	assert.Equal(t, "DEFAULT", col.DefaultKind)

	col = ParseColumn("id", "UInt32", "")
	assert.False(t, col.HasDefault)
}

func TestParseColumnType(t *testing.T) {
	typ, err := ParseColumnType("Int16")
	require.NoError(t, err)
	assert.Equal(t, Int16, typ)

	_, err = ParseColumnType("IPv4")
	assert.Error(t, err)
}

func TestColumnType_Behaviour(t *testing.T) {
	assert.Equal(t, "DateTime64", DateTime64.String())
	assert.Equal(t, 16, UUID.Width())
	assert.Equal(t, 0, String.Width())
	assert.Equal(t, 2, Date.Width())
	assert.True(t, Int8.IsInteger())
	assert.True(t, Int8.IsSigned())
	assert.True(t, UInt64.IsInteger())
	assert.False(t, UInt64.IsSigned())
	assert.True(t, Float32.IsFloat())
	assert.True(t, Date32.IsTemporal())
	assert.True(t, Map.IsContainer())
	assert.False(t, Array.IsScalar())
	assert.False(t, Unknown.IsScalar())
	assert.Equal(t, "Unknown", ColumnType(200).String())
}

func TestColumn_TypeName(t *testing.T) {
	assert.Equal(t, "Nullable(String)", ParseColumn("n", "Nullable(String)", "").TypeName())
	assert.Equal(t, "Array(String)", ParseColumn("tags", "Array(String)", "").TypeName())
	assert.Equal(t, "Map(String, UInt64)", ParseColumn("m", "Map(String,UInt64)", "").TypeName())
	assert.Equal(t, "Decimal(10, 2)", ParseColumn("d", "Decimal(10, 2)", "").TypeName())
}

func eventsTable() Table {
	return Table{
		Name: "events",
		Columns: []Column{
			ParseColumn("id", "UInt32", ""),
			ParseColumn("name", "String", ""),
			ParseColumn("ts", "DateTime", ""),
			ParseColumn("tags", "Array(String)", ""),
		},
	}
}

func TestTable_HasDefaults(t *testing.T) {
	tbl := eventsTable()
	assert.False(t, tbl.HasDefaults())

	tbl.Columns = append(tbl.Columns, ParseColumn("created_at", "DateTime", "DEFAULT"))
	assert.True(t, tbl.HasDefaults())
}

func TestTable_Column(t *testing.T) {
	tbl := eventsTable()

	col, ok := tbl.Column("ts")
	require.True(t, ok)
	assert.Equal(t, DateTime, col.Type)

	_, ok = tbl.Column("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"id", "name", "ts", "tags"}, tbl.ColumnNames())
	assert.Equal(t, "events(id UInt32, name String, ts DateTime, tags Array(String))", tbl.Describe())
}

func TestCatalog(t *testing.T) {
	events := eventsTable()
	users := Table{Name: "users", Columns: []Column{ParseColumn("id", "UInt64", "")}}
	cat := NewCatalog([]Table{users, events})

	assert.Equal(t, 2, cat.Len())
	assert.Equal(t, []string{"events", "users"}, cat.Names())

	got, ok := cat.Lookup("events")
	require.True(t, ok)
	assert.Equal(t, events.Columns, got.Columns)

	// the snapshot does not alias the caller's slices
	events.Columns[0].Name = "changed"
	got, _ = cat.Lookup("events")
	assert.Equal(t, "id", got.Columns[0].Name)

	tables := cat.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "events", tables[0].Name)

	var nilCat *Catalog
	_, ok = nilCat.Lookup("events")
	assert.False(t, ok)
	assert.Zero(t, nilCat.Len())
}
