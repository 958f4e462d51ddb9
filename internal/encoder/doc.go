// Package encoder turns records into bytes, either for an insert request or
// for an archive file.
//
// # Row Encoders
//
// Row encoders implement pkg/encoder.RowEncoder and serialize records in one
// of the destination's insert formats:
//
//   - RowBinary: columns in table order, little-endian fixed-width scalars,
//     LEB128 length prefixes, and a marker byte (0 value, 1 null) in front of
//     every Nullable column
//   - JSONEachRow: one flat JSON object per line, no validation
//
// Pick one by wire format:
//
//	enc, err := encoder.NewRowEncoder(pkgencoder.FormatRowBinary)
//	if err != nil {
//	    return err
//	}
//	rows, err := enc.EncodeBatch(w, tbl, batch)
//
// A row is appended to the output whole or not at all. Tombstones produce
// no bytes.
//
// RowBinaryDecoder reads RowBinary back into Data values and is used to
// inspect what an insert carried.
//
// # Archive Encoders
//
// Failed records that exhaust retries are archived through
// pkg/encoder.Encoder:
//
//   - Parquet: columnar, SNAPPY by default (GZIP, LZ4, ZSTD also supported)
//   - Avro: OCF with embedded schema, optionally gzipped as a whole
//
// Use Factory to create archive encoders from configuration:
//
//	factory := encoder.NewFactory(event.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := enc.Encode(filePath, failed)
//
// # Thread Safety
//
// All encoders are stateless after construction and safe for concurrent use.
package encoder
