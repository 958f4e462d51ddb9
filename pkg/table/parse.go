package table

import (
	"fmt"
	"strings"
)

var scalarNames = map[string]ColumnType{
	"Int8":       Int8,
	"Int16":      Int16,
	"Int32":      Int32,
	"Int64":      Int64,
	"UInt8":      UInt8,
	"UInt16":     UInt16,
	"UInt32":     UInt32,
	"UInt64":     UInt64,
	"Float32":    Float32,
	"Float64":    Float64,
	"Bool":       Bool,
	"Boolean":    Bool,
	"String":     String,
	"UUID":       UUID,
	"Date":       Date,
	"Date32":     Date32,
	"DateTime":   DateTime,
	"DateTime64": DateTime64,
}

// ParseColumn builds a Column from a catalog type expression such as
// "Nullable(String)", "Array(UInt32)" or "Map(String, Int64)". Expressions
// outside the supported set yield a column of type Unknown rather than an error.
func ParseColumn(name, typeExpr, defaultKind string) Column {
	col := Column{
		Name:        name,
		Raw:         typeExpr,
		DefaultKind: defaultKind,
		HasDefault:  defaultKind != "",
	}

	expr := strings.TrimSpace(typeExpr)
	expr, col.Nullable = unwrapNullable(expr)

	head, args := splitCall(expr)
	switch head {
	case "Array":
		elem, ok := parseScalar(args)
		if !ok {
			return col
		}
		col.Type = Array
		col.Elem = elem
	case "Map":
		parts := splitArgs(args)
		if len(parts) != 2 {
			return col
		}
		k, okK := parseScalar(parts[0])
		v, okV := parseScalar(parts[1])
		if !okK || !okV {
			return col
		}
		col.Type = Map
		col.Key = k
		col.Value = v
	default:
		if t, ok := parseScalar(expr); ok {
			col.Type = t
		}
	}
	return col
}

// ParseColumnType parses a scalar type expression.
func ParseColumnType(expr string) (ColumnType, error) {
	t, ok := parseScalar(expr)
	if !ok {
		return Unknown, fmt.Errorf("unsupported column type %q", expr)
	}
	return t, nil
}

func parseScalar(expr string) (ColumnType, bool) {
	expr = strings.TrimSpace(expr)
	expr = unwrap(expr, "LowCardinality")
	head, _ := splitCall(expr)
	t, ok := scalarNames[head]
	return t, ok
}

func unwrapNullable(expr string) (string, bool) {
	// LowCardinality(Nullable(T)) is the only legal nesting order.
	inner := unwrap(expr, "LowCardinality")
	if stripped := unwrap(inner, "Nullable"); stripped != inner {
		return stripped, true
	}
	return expr, false
}

func unwrap(expr, fn string) string {
	prefix := fn + "("
	if strings.HasPrefix(expr, prefix) && strings.HasSuffix(expr, ")") {
		return strings.TrimSpace(expr[len(prefix) : len(expr)-1])
	}
	return expr
}

// splitCall splits "Head(args)" into its head and raw argument text.
func splitCall(expr string) (string, string) {
	i := strings.IndexByte(expr, '(')
	if i < 0 || !strings.HasSuffix(expr, ")") {
		return expr, ""
	}
	return strings.TrimSpace(expr[:i]), expr[i+1 : len(expr)-1]
}

// splitArgs splits top-level comma separated arguments.
func splitArgs(s string) []string {
	var (
		out   []string
		depth int
		start int
		quote bool
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quote = !quote
		case quote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
