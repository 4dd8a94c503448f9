package catalog

import "sort"

const (
	// ValidityColumn holds the half-open block range during which a row version is current.
	ValidityColumn = "_block_range"

	// IDColumn is the entity id column that every indexer table exposes as a unique key.
	IDColumn = "id"
)

// UniqueKey is a set of columns whose values identify at most one row per revision.
type UniqueKey struct {
	Name    string
	Columns []string
	Primary bool
}

// Resource is a queryable entity. Resources are built by a Builder and are never mutated
// afterwards, so they can be shared across goroutines without locking.
type Resource struct {
	Schema string
	Name   string
	Codec  *Codec

	uniqueKeys []UniqueKey
	relations  map[string]*Relation
	relNames   []string
}

// Attribute looks up a column by name, including internal columns.
func (r *Resource) Attribute(name string) (Attribute, bool) {
	return r.Codec.Attribute(name)
}

// UserAttribute looks up a column that may appear in filters and orderings.
func (r *Resource) UserAttribute(name string) (Attribute, bool) {
	if IsInternal(name) {
		return Attribute{}, false
	}
	return r.Codec.Attribute(name)
}

// UserAttributes returns the non-internal columns in declaration order.
func (r *Resource) UserAttributes() []Attribute {
	attrs := make([]Attribute, 0, len(r.Codec.Attributes()))
	for _, a := range r.Codec.Attributes() {
		if !a.IsInternal() {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// HasValidity reports whether rows of this resource are versioned by block range.
func (r *Resource) HasValidity() bool {
	_, ok := r.Codec.Attribute(ValidityColumn)
	return ok
}

// UniqueKeys returns the unique keys, primary key first.
func (r *Resource) UniqueKeys() []UniqueKey {
	return r.uniqueKeys
}

// PrimaryKey returns the columns used as a deterministic ordering tie-break. Tables
// without a declared key fall back to the virtual id key, or to every user column.
func (r *Resource) PrimaryKey() []string {
	for _, k := range r.uniqueKeys {
		if k.Primary {
			return k.Columns
		}
	}
	if len(r.uniqueKeys) > 0 {
		return r.uniqueKeys[0].Columns
	}
	cols := make([]string, 0)
	for _, a := range r.UserAttributes() {
		cols = append(cols, a.Name)
	}
	return cols
}

// UniqueKeyByColumns returns the unique key made of exactly the given columns.
func (r *Resource) UniqueKeyByColumns(cols ...string) (UniqueKey, bool) {
	for _, k := range r.uniqueKeys {
		if sameColumns(k.Columns, cols) {
			return k, true
		}
	}
	return UniqueKey{}, false
}

// Relation resolves a forward or backward relation by name.
func (r *Resource) Relation(name string) (*Relation, bool) {
	rel, ok := r.relations[name]
	return rel, ok
}

// Relations returns every relation of the resource sorted by name.
func (r *Resource) Relations() []*Relation {
	out := make([]*Relation, 0, len(r.relNames))
	for _, n := range r.relNames {
		out = append(out, r.relations[n])
	}
	return out
}

func (r *Resource) sortRelations() {
	r.relNames = r.relNames[:0]
	for n := range r.relations {
		r.relNames = append(r.relNames, n)
	}
	sort.Strings(r.relNames)
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, c := range a {
		seen[c] = struct{}{}
	}
	for _, c := range b {
		if _, ok := seen[c]; !ok {
			return false
		}
	}
	return true
}
