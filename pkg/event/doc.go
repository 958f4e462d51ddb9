// Package event defines the record model shared by the consumer, the converter
// and the insert path.
//
// # Messages and Records
//
// A Message is the raw Kafka payload with its metadata. The converter turns it
// into a Record: a topic, a schema mode, an optional declared field list and a
// mapping from field name to Data.
//
//	rec := event.Record{
//	    Topic: "events",
//	    Mode:  event.SchemaModeSchema,
//	    Fields: []event.Field{
//	        {Name: "id", Type: event.FieldUint32},
//	        {Name: "name", Type: event.FieldString},
//	    },
//	    Values: map[string]event.Data{
//	        "id":   event.Uint32(7),
//	        "name": event.String("signup"),
//	    },
//	}
//
// # Data
//
// Data is a closed sum over the logical kinds a field may carry: Null, the
// integer and float widths, Bool, String, UUID, List and Map. Every value
// reports its FieldType tag, which the validator compares against the
// destination column type.
//
//	var d event.Data = event.Int64(1700000000)
//	d.Type() // FieldInt64
//
// Null carries the declared type when the source schema knows it:
//
//	event.Null{Of: event.FieldString}
//
// # Schema Modes
//
// SchemaModeSchema records come from typed sources and list their fields.
// SchemaModeSchemaless records are plain key/value maps. The mode decides which
// wire format an insert uses.
//
// # Tombstones
//
// A record whose Values map is nil came from a message with no value. Both
// encoders skip it.
//
// # Partition Identification
//
// PartitionID uniquely identifies a Kafka topic partition:
//
//	pid := event.PartitionID{Topic: "user-events", Partition: 5}
//	key := pid.String() // "user-events-5"
package event
