package event

// FieldType is the logical type tag carried by a decoded field value. It is
// independent of the destination column type; encoders reconcile the two.
type FieldType uint8

const (
	FieldUnknown FieldType = iota
	FieldInt8
	FieldInt16
	FieldInt32
	FieldInt64
	FieldUint8
	FieldUint16
	FieldUint32
	FieldUint64
	FieldFloat32
	FieldFloat64
	FieldBoolean
	FieldString
	FieldUUID
	FieldArray
	FieldMap
)

var fieldTypeNames = [...]string{
	FieldUnknown: "UNKNOWN",
	FieldInt8:    "INT8",
	FieldInt16:   "INT16",
	FieldInt32:   "INT32",
	FieldInt64:   "INT64",
	FieldUint8:   "UINT8",
	FieldUint16:  "UINT16",
	FieldUint32:  "UINT32",
	FieldUint64:  "UINT64",
	FieldFloat32: "FLOAT32",
	FieldFloat64: "FLOAT64",
	FieldBoolean: "BOOLEAN",
	FieldString:  "STRING",
	FieldUUID:    "UUID",
	FieldArray:   "ARRAY",
	FieldMap:     "MAP",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return fieldTypeNames[FieldUnknown]
}

// Data is one decoded field value. The set of implementations is closed:
// Null, the integer and float widths, Bool, String, UUID, List and Map.
type Data interface {
	Type() FieldType
	isData()
}

// Null is an explicit null. Of is the declared type when the source knows it.
type Null struct{ Of FieldType }

type (
	Int8    int8
	Int16   int16
	Int32   int32
	Int64   int64
	Uint8   uint8
	Uint16  uint16
	Uint32  uint32
	Uint64  uint64
	Float32 float32
	Float64 float64
	Bool    bool
	String  string
	UUID    [16]byte
)

// List is an ordered sequence of scalar values of type Elem.
type List struct {
	Elem  FieldType
	Items []Data
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Data
	Value Data
}

// Map is a key/value mapping. Entries keep the order the decoder produced.
type Map struct {
	Key     FieldType
	Value   FieldType
	Entries []MapEntry
}

func (n Null) Type() FieldType  { return n.Of }
func (Int8) Type() FieldType    { return FieldInt8 }
func (Int16) Type() FieldType   { return FieldInt16 }
func (Int32) Type() FieldType   { return FieldInt32 }
func (Int64) Type() FieldType   { return FieldInt64 }
func (Uint8) Type() FieldType   { return FieldUint8 }
func (Uint16) Type() FieldType  { return FieldUint16 }
func (Uint32) Type() FieldType  { return FieldUint32 }
func (Uint64) Type() FieldType  { return FieldUint64 }
func (Float32) Type() FieldType { return FieldFloat32 }
func (Float64) Type() FieldType { return FieldFloat64 }
func (Bool) Type() FieldType    { return FieldBoolean }
func (String) Type() FieldType  { return FieldString }
func (UUID) Type() FieldType    { return FieldUUID }
func (List) Type() FieldType    { return FieldArray }
func (Map) Type() FieldType     { return FieldMap }

func (Null) isData()    {}
func (Int8) isData()    {}
func (Int16) isData()   {}
func (Int32) isData()   {}
func (Int64) isData()   {}
func (Uint8) isData()   {}
func (Uint16) isData()  {}
func (Uint32) isData()  {}
func (Uint64) isData()  {}
func (Float32) isData() {}
func (Float64) isData() {}
func (Bool) isData()    {}
func (String) isData()  {}
func (UUID) isData()    {}
func (List) isData()    {}
func (Map) isData()     {}

// IsNull reports whether d is absent or an explicit null.
func IsNull(d Data) bool {
	if d == nil {
		return true
	}
	_, ok := d.(Null)
	return ok
}

// Len returns the number of entries.
func (m Map) Len() int { return len(m.Entries) }

// Len returns the number of items.
func (l List) Len() int { return len(l.Items) }
