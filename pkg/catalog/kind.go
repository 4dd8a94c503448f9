package catalog

import "strings"

// ScalarKind classifies a column type for the purpose of filtering. The set is closed:
// every postgres type the catalog sees is folded into exactly one kind.
type ScalarKind int

const (
	// KindUnsupported covers composite, json, array, range and unknown types. No filter
	// field is generated for columns of this kind.
	KindUnsupported ScalarKind = iota
	KindBoolean
	KindBinary
	KindInt
	KindFloat
	KindNumeric
	KindTimestamp
	KindText
)

// Kinds lists every ScalarKind, in declaration order.
var Kinds = []ScalarKind{
	KindUnsupported,
	KindBoolean,
	KindBinary,
	KindInt,
	KindFloat,
	KindNumeric,
	KindTimestamp,
	KindText,
}

func (k ScalarKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindBinary:
		return "binary"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindNumeric:
		return "numeric"
	case KindTimestamp:
		return "timestamp"
	case KindText:
		return "text"
	default:
		return "unsupported"
	}
}

// Compatible reports whether two kinds may be paired across a foreign key.
func (k ScalarKind) Compatible(other ScalarKind) bool {
	if k == KindUnsupported || other == KindUnsupported {
		return false
	}
	if k == other {
		return true
	}
	integral := func(s ScalarKind) bool { return s == KindInt || s == KindNumeric }
	return integral(k) && integral(other)
}

var pgTypeKinds = map[string]ScalarKind{
	"bool":    KindBoolean,
	"boolean": KindBoolean,

	"bytea": KindBinary,

	"int2":     KindInt,
	"int4":     KindInt,
	"int8":     KindInt,
	"smallint": KindInt,
	"integer":  KindInt,
	"bigint":   KindInt,

	"float4":           KindFloat,
	"float8":           KindFloat,
	"real":             KindFloat,
	"double precision": KindFloat,

	"numeric": KindNumeric,
	"decimal": KindNumeric,

	"timestamp":                   KindTimestamp,
	"timestamptz":                 KindTimestamp,
	"timestamp without time zone": KindTimestamp,
	"timestamp with time zone":    KindTimestamp,

	"text":              KindText,
	"varchar":           KindText,
	"character varying": KindText,
}

// KindFromPgType maps a postgres type name, either the internal name (int8) or the
// information_schema spelling (bigint), to its ScalarKind.
func KindFromPgType(name string) ScalarKind {
	return pgTypeKinds[NormalizePgType(name)]
}

// NormalizePgType lowercases a type name and folds the information_schema spellings
// onto the short internal names used in casts.
func NormalizePgType(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = strings.TrimSpace(n[:i])
	}
	switch n {
	case "boolean":
		return "bool"
	case "smallint", "tinyint":
		return "int2"
	case "integer", "int":
		return "int4"
	case "bigint":
		return "int8"
	case "real":
		return "float4"
	case "double precision", "double":
		return "float8"
	case "decimal":
		return "numeric"
	case "timestamp without time zone", "datetime":
		return "timestamp"
	case "timestamp with time zone":
		return "timestamptz"
	case "character varying":
		return "varchar"
	case "blob", "longblob", "varbinary":
		return "bytea"
	case "mediumtext", "longtext":
		return "text"
	}
	return n
}
