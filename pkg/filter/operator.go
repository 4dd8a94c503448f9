package filter

import (
	"strings"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

// Operator is one comparison a filter leaf can apply to a column. The set is closed; every
// switch over it is exhaustive.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpIn
	OpNotIn
	OpGreaterThan
	OpLessThan
	OpGreaterOrEqual
	OpLessOrEqual
	OpContains
	OpNotContains
	OpContainsNoCase
	OpNotContainsNoCase
	OpStartsWith
	OpStartsWithNoCase
	OpNotStartsWith
	OpNotStartsWithNoCase
	OpEndsWith
	OpEndsWithNoCase
	OpNotEndsWith
	OpNotEndsWithNoCase

	numOperators
)

// Operators lists every operator in declaration order.
var Operators = func() []Operator {
	ops := make([]Operator, 0, numOperators)
	for op := OpEqual; op < numOperators; op++ {
		ops = append(ops, op)
	}
	return ops
}()

var suffixes = [numOperators]string{
	OpEqual:               "",
	OpNotEqual:            "not",
	OpIn:                  "in",
	OpNotIn:               "not_in",
	OpGreaterThan:         "gt",
	OpLessThan:            "lt",
	OpGreaterOrEqual:      "gte",
	OpLessOrEqual:         "lte",
	OpContains:            "contains",
	OpNotContains:         "not_contains",
	OpContainsNoCase:      "contains_nocase",
	OpNotContainsNoCase:   "not_contains_nocase",
	OpStartsWith:          "starts_with",
	OpStartsWithNoCase:    "starts_with_nocase",
	OpNotStartsWith:       "not_starts_with",
	OpNotStartsWithNoCase: "not_starts_with_nocase",
	OpEndsWith:            "ends_with",
	OpEndsWithNoCase:      "ends_with_nocase",
	OpNotEndsWith:         "not_ends_with",
	OpNotEndsWithNoCase:   "not_ends_with_nocase",
}

// Suffix is the field name suffix selecting the operator. Equality has none.
func (o Operator) Suffix() string {
	if o < 0 || o >= numOperators {
		return ""
	}
	return suffixes[o]
}

func (o Operator) String() string {
	if o == OpEqual {
		return "eq"
	}
	if o < 0 || o >= numOperators {
		return "unknown"
	}
	return suffixes[o]
}

// OperatorFromSuffix resolves a field name suffix.
func OperatorFromSuffix(s string) (Operator, bool) {
	for op, suffix := range suffixes {
		if suffix == s {
			return Operator(op), true
		}
	}
	return 0, false
}

var (
	equalityOps = []Operator{OpEqual, OpNotEqual, OpIn, OpNotIn}
	orderingOps = []Operator{OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpIn, OpNotIn}
	binaryOps   = append(append([]Operator(nil), orderingOps...), OpContains, OpNotContains)
	textOps     = append(append([]Operator(nil), orderingOps...),
		OpContains, OpNotContains, OpContainsNoCase, OpNotContainsNoCase,
		OpStartsWith, OpStartsWithNoCase, OpNotStartsWith, OpNotStartsWithNoCase,
		OpEndsWith, OpEndsWithNoCase, OpNotEndsWith, OpNotEndsWithNoCase,
	)
)

// LegalOperators returns the operators a column of the given kind supports. Unsupported
// kinds get none, so no filter field exists for such columns. The returned slice is shared
// and must not be modified.
func LegalOperators(kind catalog.ScalarKind) []Operator {
	switch kind {
	case catalog.KindBoolean:
		return equalityOps
	case catalog.KindBinary:
		return binaryOps
	case catalog.KindInt, catalog.KindFloat, catalog.KindNumeric, catalog.KindTimestamp:
		return orderingOps
	case catalog.KindText:
		return textOps
	case catalog.KindUnsupported:
		return nil
	default:
		return nil
	}
}

// IsLegal reports whether op may be applied to a column of the given kind.
func IsLegal(kind catalog.ScalarKind, op Operator) bool {
	for _, o := range LegalOperators(kind) {
		if o == op {
			return true
		}
	}
	return false
}

// Shape is the form of value an operator accepts.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
)

// ValueShape returns whether op takes one value or a list of values.
func ValueShape(op Operator) Shape {
	switch op {
	case OpIn, OpNotIn:
		return ShapeList
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual,
		OpContains, OpNotContains, OpContainsNoCase, OpNotContainsNoCase,
		OpStartsWith, OpStartsWithNoCase, OpNotStartsWith, OpNotStartsWithNoCase,
		OpEndsWith, OpEndsWithNoCase, OpNotEndsWith, OpNotEndsWithNoCase:
		return ShapeScalar
	default:
		return ShapeScalar
	}
}

// Anchor says where a pattern operator pins the caller's value.
type Anchor int

const (
	AnchorNone Anchor = iota
	AnchorContains
	AnchorPrefix
	AnchorSuffix
)

// PatternSpec describes a LIKE based operator.
type PatternSpec struct {
	Anchor          Anchor
	CaseInsensitive bool
	Negated         bool
}

// Pattern describes op when it is a pattern operator. Anchor is AnchorNone otherwise.
func (o Operator) Pattern() PatternSpec {
	switch o {
	case OpContains:
		return PatternSpec{Anchor: AnchorContains}
	case OpNotContains:
		return PatternSpec{Anchor: AnchorContains, Negated: true}
	case OpContainsNoCase:
		return PatternSpec{Anchor: AnchorContains, CaseInsensitive: true}
	case OpNotContainsNoCase:
		return PatternSpec{Anchor: AnchorContains, CaseInsensitive: true, Negated: true}
	case OpStartsWith:
		return PatternSpec{Anchor: AnchorPrefix}
	case OpStartsWithNoCase:
		return PatternSpec{Anchor: AnchorPrefix, CaseInsensitive: true}
	case OpNotStartsWith:
		return PatternSpec{Anchor: AnchorPrefix, Negated: true}
	case OpNotStartsWithNoCase:
		return PatternSpec{Anchor: AnchorPrefix, CaseInsensitive: true, Negated: true}
	case OpEndsWith:
		return PatternSpec{Anchor: AnchorSuffix}
	case OpEndsWithNoCase:
		return PatternSpec{Anchor: AnchorSuffix, CaseInsensitive: true}
	case OpNotEndsWith:
		return PatternSpec{Anchor: AnchorSuffix, Negated: true}
	case OpNotEndsWithNoCase:
		return PatternSpec{Anchor: AnchorSuffix, CaseInsensitive: true, Negated: true}
	case OpEqual, OpNotEqual, OpIn, OpNotIn, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return PatternSpec{}
	default:
		return PatternSpec{}
	}
}

// Backslash is the ESCAPE character of every dialect, so it is escaped as well.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLikeWildcards escapes the LIKE metacharacters and the backslash escape character
// so the value matches literally.
func EscapeLikeWildcards(s string) string {
	return likeEscaper.Replace(s)
}

// EscapeLikeWildcardsBytes is EscapeLikeWildcards for binary values.
func EscapeLikeWildcardsBytes(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return out
}

func wrapPattern(anchor Anchor, escaped string) string {
	switch anchor {
	case AnchorContains:
		return "%" + escaped + "%"
	case AnchorPrefix:
		return escaped + "%"
	case AnchorSuffix:
		return "%" + escaped
	case AnchorNone:
		return escaped
	default:
		return escaped
	}
}

// FieldName is the filter object key for column under op: the column itself for
// equality, column_suffix otherwise.
func FieldName(column string, op Operator) string {
	if op == OpEqual {
		return column
	}
	return column + "_" + op.Suffix()
}

// ParseFieldName splits a filter key into a user column and an operator. An exact column
// name is equality; otherwise the longest matching suffix whose remainder is a column wins.
func ParseFieldName(res *catalog.Resource, key string) (catalog.Attribute, Operator, bool) {
	if attr, ok := res.UserAttribute(key); ok {
		return attr, OpEqual, true
	}

	var (
		best    Operator
		bestLen = -1
		bestAtt catalog.Attribute
	)
	for _, op := range Operators[1:] {
		suffix := "_" + op.Suffix()
		column, ok := strings.CutSuffix(key, suffix)
		if !ok || len(suffix) <= bestLen {
			continue
		}
		attr, ok := res.UserAttribute(column)
		if !ok {
			continue
		}
		best, bestLen, bestAtt = op, len(suffix), attr
	}
	if bestLen < 0 {
		return catalog.Attribute{}, 0, false
	}
	return bestAtt, best, true
}
