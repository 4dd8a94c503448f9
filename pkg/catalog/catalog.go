// Package catalog holds the read-only description of every queryable entity: its columns,
// unique keys and relations. A Catalog is built once at startup and passed explicitly to
// everything that compiles queries.
package catalog

import (
	"fmt"
	"sort"
)

// Catalog is an immutable set of resources with a precomputed bidirectional relation index.
type Catalog struct {
	schema    string
	resources map[string]*Resource
	names     []string
}

// Schema returns the database schema the catalog was introspected from.
func (c *Catalog) Schema() string {
	return c.schema
}

// Resource returns the resource for a table name.
func (c *Catalog) Resource(name string) (*Resource, error) {
	r, ok := c.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return r, nil
}

// Resources returns every resource sorted by name.
func (c *Catalog) Resources() []*Resource {
	out := make([]*Resource, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.resources[n])
	}
	return out
}

// Relation resolves a relation of the named resource.
func (c *Catalog) Relation(resource, name string) (*Relation, bool) {
	r, ok := c.resources[resource]
	if !ok {
		return nil, false
	}
	return r.Relation(name)
}

func (c *Catalog) index() {
	c.names = c.names[:0]
	for n, r := range c.resources {
		c.names = append(c.names, n)
		r.sortRelations()
	}
	sort.Strings(c.names)
}
