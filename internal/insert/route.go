package insert

import (
	"github.com/jittakal/kafeventsink/pkg/encoder"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/table"
)

// Path is the wire format family chosen for a batch.
type Path uint8

const (
	// PathBinary streams RowBinary. It needs the exact column list, so it
	// is only taken when every column must come from the record.
	PathBinary Path = iota
	// PathText streams JSONEachRow and lets the server fill defaults and
	// skip unknown fields.
	PathText
)

func (p Path) String() string {
	if p == PathBinary {
		return "binary"
	}
	return "text"
}

// Format returns the insert format for the path.
func (p Path) Format() encoder.Format {
	if p == PathBinary {
		return encoder.FormatRowBinary
	}
	return encoder.FormatJSONEachRow
}

// Route picks the path for a batch from its table and first record.
func Route(tbl table.Table, first *event.Record) Path {
	if first.Mode == event.SchemaModeSchema && !tbl.HasDefaults() {
		return PathBinary
	}
	return PathText
}
