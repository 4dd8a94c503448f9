package filter

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

// condition lowers one leaf. Values only ever reach the statement as bound arguments.
func (s *scope) condition(t target, leaf Leaf, path []string) (sq.Sqlizer, error) {
	attr, ok := t.res.UserAttribute(leaf.Field)
	if !ok {
		return nil, newError(CodeUnknownField, path, "%q has no column %q", t.res.Name, leaf.Field)
	}
	if !IsLegal(attr.Kind(), leaf.Operator) {
		return nil, newError(CodeUnsupportedOperator, path, "%s on %s column %q", leaf.Operator, attr.Kind(), attr.Name)
	}
	if leaf.Value == nil {
		// Only reachable when the guard allows nulls: a null leaf places no condition.
		return nil, nil
	}

	col := t.column(s.dialect, attr.Name)

	switch leaf.Operator {
	case OpEqual:
		return s.compare(col, "=", attr, leaf.Value, path)
	case OpNotEqual:
		return s.compare(col, "<>", attr, leaf.Value, path)
	case OpGreaterThan:
		return s.compare(col, ">", attr, leaf.Value, path)
	case OpLessThan:
		return s.compare(col, "<", attr, leaf.Value, path)
	case OpGreaterOrEqual:
		return s.compare(col, ">=", attr, leaf.Value, path)
	case OpLessOrEqual:
		return s.compare(col, "<=", attr, leaf.Value, path)
	case OpIn:
		return s.membership(col, attr, leaf.Value, false, path)
	case OpNotIn:
		return s.membership(col, attr, leaf.Value, true, path)
	case OpContains, OpNotContains, OpContainsNoCase, OpNotContainsNoCase,
		OpStartsWith, OpStartsWithNoCase, OpNotStartsWith, OpNotStartsWithNoCase,
		OpEndsWith, OpEndsWithNoCase, OpNotEndsWith, OpNotEndsWithNoCase:
		return s.pattern(col, attr, leaf.Operator.Pattern(), leaf.Value, path)
	default:
		return nil, newError(CodeUnsupportedOperator, path, "operator %d", int(leaf.Operator))
	}
}

func (s *scope) compare(col, op string, attr catalog.Attribute, raw any, path []string) (sq.Sqlizer, error) {
	v, err := coerceScalar(attr.Kind(), raw)
	if err != nil {
		return nil, newError(CodeInvalidValue, path, "%v", err)
	}
	return sq.Expr(col+" "+op+" ?", s.dialect.Bind(v)), nil
}

func (s *scope) membership(col string, attr catalog.Attribute, raw any, negate bool, path []string) (sq.Sqlizer, error) {
	list, ok := asList(raw)
	if !ok {
		return nil, newError(CodeInvalidValue, path, "expected a list")
	}
	values, idx, err := coerceList(attr.Kind(), list)
	if err != nil {
		if idx < 0 {
			return nil, newError(CodeInvalidValue, path, "%v", err)
		}
		return nil, newError(CodeInvalidListElement, path, "element %d: %w", idx, err)
	}
	pred, err := s.dialect.Membership(col, attr.Codec, values, negate)
	if err != nil {
		return nil, newError(CodeUnsupportedOperator, path, "%v", err)
	}
	return pred, nil
}

// pattern escapes the caller's value, anchors it with % and renders the positive match.
// Negated operators wrap that same predicate in NOT.
func (s *scope) pattern(col string, attr catalog.Attribute, spec PatternSpec, raw any, path []string) (sq.Sqlizer, error) {
	v, err := coerceScalar(attr.Kind(), raw)
	if err != nil {
		return nil, newError(CodeInvalidValue, path, "%v", err)
	}

	var pattern any
	switch val := v.(type) {
	case string:
		pattern = wrapPattern(spec.Anchor, EscapeLikeWildcards(val))
	case []byte:
		pattern = []byte(wrapPattern(spec.Anchor, string(EscapeLikeWildcardsBytes(val))))
	default:
		return nil, newError(CodeUnsupportedOperator, path, "pattern match on %s column %q", attr.Kind(), attr.Name)
	}

	pred := s.dialect.Pattern(col, attr.Kind(), pattern, spec.CaseInsensitive)
	if spec.Negated {
		return negate(pred), nil
	}
	return pred, nil
}
