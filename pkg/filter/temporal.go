package filter

import (
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
)

type revisionMode int

const (
	revisionAll revisionMode = iota
	revisionAt
	revisionLatest
)

// Revision selects which row versions a request sees. It is captured once per request
// and copied into every alias the request touches.
type Revision struct {
	mode   revisionMode
	height int64
}

// AllRevisions sees every stored version of every row.
func AllRevisions() Revision {
	return Revision{mode: revisionAll}
}

// LatestRevision sees only versions whose validity range is still open.
func LatestRevision() Revision {
	return Revision{mode: revisionLatest}
}

// AtRevision sees the versions whose validity range contains height.
func AtRevision(height int64) (Revision, error) {
	if height < 0 {
		return Revision{}, newError(CodeInvalidRevision, []string{"block", "number"}, "%d", height)
	}
	return Revision{mode: revisionAt, height: height}, nil
}

// Height returns the pinned revision, if any.
func (r Revision) Height() (int64, bool) {
	return r.height, r.mode == revisionAt
}

// IsLatest reports whether only current versions are visible.
func (r Revision) IsLatest() bool {
	return r.mode == revisionLatest
}

func (r Revision) String() string {
	switch r.mode {
	case revisionAt:
		return "at:" + itoa(r.height)
	case revisionLatest:
		return "latest"
	default:
		return "all"
	}
}

// predicate restricts the versions of t.res visible under t.alias. Resources without a
// validity column are not versioned and get no predicate.
func (r Revision) predicate(d dialect.Dialect, t target) sq.Sqlizer {
	if !t.res.HasValidity() {
		return nil
	}
	col := t.column(d, catalog.ValidityColumn)
	switch r.mode {
	case revisionAt:
		return d.RangeContains(col, r.height)
	case revisionLatest:
		return d.Current(col)
	default:
		return nil
	}
}

func revisionOf(req Request) (Revision, error) {
	if req.AsOf != nil {
		return AtRevision(*req.AsOf)
	}
	if req.Latest {
		return LatestRevision(), nil
	}
	return AllRevisions(), nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
