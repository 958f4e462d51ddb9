// Package table describes destination tables: the closed set of column types,
// columns with their nullability and container parameters, and immutable
// catalog snapshots shared by concurrent inserts.
//
// Column order in a Table is significant. It fixes the field order of the
// RowBinary encoding.
package table
