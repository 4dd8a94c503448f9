package filter

import (
	sq "github.com/Masterminds/squirrel"
)

// relation lowers a filter on a related resource into a correlated EXISTS subquery. The
// subquery scans the remote table under a fresh alias, pairs every local and remote
// attribute, applies the request revision to that alias and conjoins the subtree compiled
// against the remote resource. Cardinality does not change the shape.
func (s *scope) relation(t target, rf RelationFilter, path []string) (sq.Sqlizer, error) {
	rel, ok := t.res.Relation(rf.Relation)
	if !ok {
		return nil, newError(CodeUnknownRelation, path, "%q has no relation %q", t.res.Name, rf.Relation)
	}

	remote := target{res: rel.Remote, alias: s.alias()}

	preds := make([]sq.Sqlizer, 0, len(rel.LocalAttributes)+2)
	for i := range rel.LocalAttributes {
		preds = append(preds, sq.Expr(
			remote.column(s.dialect, rel.RemoteAttributes[i])+" = "+t.column(s.dialect, rel.LocalAttributes[i]),
		))
	}
	preds = append(preds, s.revision.predicate(s.dialect, remote))

	subtree, err := s.lower(remote, rf.Subtree, path)
	if err != nil {
		return nil, err
	}
	preds = append(preds, subtree)

	sub := sq.Select("1").
		From(s.dialect.Table(rel.Remote.Schema, rel.Remote.Name) + " AS " + s.dialect.QuoteIdent(remote.alias)).
		Where(conjoin(preds...))

	return sq.Expr("EXISTS (?)", sub), nil
}
