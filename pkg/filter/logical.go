package filter

import (
	sq "github.com/Masterminds/squirrel"
)

// A nil sq.Sqlizer is the identity predicate (always true). It is never rendered; the
// combinators below drop it or absorb it instead.

var falsePredicate sq.Sqlizer = sq.Expr("1=0")

// conjoin returns the conjunction of preds, dropping always-true members.
func conjoin(preds ...sq.Sqlizer) sq.Sqlizer {
	kept := make(sq.And, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return kept
	}
}

// disjoin returns the disjunction of preds. Any always-true member makes the whole
// disjunction always true, and so does an empty list.
func disjoin(preds ...sq.Sqlizer) sq.Sqlizer {
	if len(preds) == 0 {
		return nil
	}
	for _, p := range preds {
		if p == nil {
			return nil
		}
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return sq.Or(preds)
}

// negate returns NOT pred. Negating a negation yields the original predicate.
func negate(pred sq.Sqlizer) sq.Sqlizer {
	switch p := pred.(type) {
	case nil:
		return falsePredicate
	case notExpr:
		return p.pred
	default:
		return notExpr{pred: pred}
	}
}

type notExpr struct {
	pred sq.Sqlizer
}

func (n notExpr) ToSql() (string, []any, error) {
	sql, args, err := n.pred.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

func (s *scope) lowerAnd(t target, node And, path []string) (sq.Sqlizer, error) {
	preds := make([]sq.Sqlizer, 0, len(node.Children))
	for i, c := range node.Children {
		p := path
		if !node.Object {
			p = appendPath(path, "and", i)
		}
		pred, err := s.lower(t, c, p)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return conjoin(preds...), nil
}

// lowerOr reduces every branch as a conjunction before disjoining, so a branch with
// several fields only matches rows satisfying all of them.
func (s *scope) lowerOr(t target, node Or, path []string) (sq.Sqlizer, error) {
	preds := make([]sq.Sqlizer, 0, len(node.Children))
	for i, c := range node.Children {
		branch := c
		if _, ok := c.(And); !ok && c != nil {
			branch = And{Children: []Node{c}, Object: true}
		}
		pred, err := s.lower(t, branch, appendPath(path, "or", i))
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return disjoin(preds...), nil
}

func (s *scope) lowerNot(t target, node Not, path []string) (sq.Sqlizer, error) {
	pred, err := s.lower(t, node.Child, append(path, "not"))
	if err != nil {
		return nil, err
	}
	return negate(pred), nil
}
