package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	metadataTableRegex      = regexp.MustCompile(`^_metadata$`)
	multiMetadataTableRegex = regexp.MustCompile(`^_metadata_[a-zA-Z0-9-]+$`)
	globalTableRegex        = regexp.MustCompile(`^_global`)
)

const poiTable = "_poi"

// IsMetadataTable reports whether name is a metadata table written by the indexer.
func IsMetadataTable(name string) bool {
	return metadataTableRegex.MatchString(name) || multiMetadataTableRegex.MatchString(name)
}

// IsHiddenTable reports whether name is an indexer bookkeeping table that is never exposed.
func IsHiddenTable(name string) bool {
	return IsMetadataTable(name) || globalTableRegex.MatchString(name) || name == poiTable
}

// Column is an introspected table column.
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

// ForeignKey is an introspected (or tagged) foreign key constraint. Columns on Table
// reference RefColumns on RefTable.
type ForeignKey struct {
	Name       string
	Table      string
	Columns    []string
	RefTable   string
	RefColumns []string
}

type tableDef struct {
	name    string
	columns []Column
	keys    []UniqueKey
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTags applies a tags document during Build.
func WithTags(t *Tags) BuilderOption {
	return func(b *Builder) {
		b.tags = t
	}
}

// Builder collects introspection results and produces a validated Catalog.
type Builder struct {
	schema string
	tags   *Tags
	tables map[string]*tableDef
	order  []string
	fks    []ForeignKey
}

// NewBuilder returns a Builder for tables of the given schema.
func NewBuilder(schema string, opts ...BuilderOption) *Builder {
	b := &Builder{
		schema: schema,
		tables: make(map[string]*tableDef),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddTable registers a table with its columns in ordinal order.
func (b *Builder) AddTable(name string, cols ...Column) *Builder {
	t, ok := b.tables[name]
	if !ok {
		t = &tableDef{name: name}
		b.tables[name] = t
		b.order = append(b.order, name)
	}
	t.columns = append(t.columns, cols...)
	return b
}

// AddUniqueKey registers a unique (or primary) key constraint.
func (b *Builder) AddUniqueKey(table, name string, primary bool, cols ...string) *Builder {
	t, ok := b.tables[table]
	if !ok {
		t = &tableDef{name: table}
		b.tables[table] = t
		b.order = append(b.order, table)
	}
	t.keys = append(t.keys, UniqueKey{Name: name, Columns: cols, Primary: primary})
	return b
}

// AddForeignKey registers a foreign key constraint.
func (b *Builder) AddForeignKey(fk ForeignKey) *Builder {
	b.fks = append(b.fks, fk)
	return b
}

// Build validates everything collected so far and returns the immutable Catalog.
func (b *Builder) Build() (*Catalog, error) {
	hidden, err := b.hiddenPatterns()
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		schema:    b.schema,
		resources: make(map[string]*Resource, len(b.tables)),
	}

	for _, name := range b.order {
		if isHidden(name, hidden) || b.tags.table(name).Hidden {
			continue
		}
		res, err := b.buildResource(b.tables[name])
		if err != nil {
			return nil, err
		}
		cat.resources[name] = res
	}

	fks, err := b.foreignKeys(cat)
	if err != nil {
		return nil, err
	}
	for _, fk := range fks {
		if err := link(cat, fk); err != nil {
			return nil, err
		}
	}

	cat.index()
	return cat, nil
}

func (b *Builder) hiddenPatterns() ([]*regexp.Regexp, error) {
	if b.tags == nil {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(b.tags.HiddenTables))
	for _, expr := range b.tags.HiddenTables {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("hidden table pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func isHidden(name string, extra []*regexp.Regexp) bool {
	if IsHiddenTable(name) {
		return true
	}
	for _, re := range extra {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (b *Builder) buildResource(t *tableDef) (*Resource, error) {
	if err := validateIdentifier(t.name); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}

	tt := b.tags.table(t.name)
	skip := make(map[string]struct{}, len(tt.HiddenColumns))
	for _, c := range tt.HiddenColumns {
		skip[c] = struct{}{}
	}

	attrs := make([]Attribute, 0, len(t.columns))
	for _, c := range t.columns {
		if _, ok := skip[c.Name]; ok && c.Name != ValidityColumn {
			continue
		}
		attrs = append(attrs, Attribute{Name: c.Name, Codec: ScalarCodec(c.Type), NotNull: c.NotNull})
	}

	codec, err := NewRecordCodec(t.name, attrs)
	if err != nil {
		return nil, err
	}

	res := &Resource{
		Schema:    b.schema,
		Name:      t.name,
		Codec:     codec,
		relations: make(map[string]*Relation),
	}

	keys := append([]UniqueKey(nil), t.keys...)
	for i, cols := range tt.UniqueKeys {
		keys = append(keys, UniqueKey{Name: fmt.Sprintf("%s_tag_key_%d", t.name, i), Columns: cols})
	}
	if _, ok := codec.Attribute(IDColumn); ok && !hasKey(keys, IDColumn) {
		// Versioned tables repeat an id once per revision, so the database cannot declare it
		// unique. It is unique at any single revision, which is all lookups need.
		keys = append(keys, UniqueKey{Name: t.name + "_id_key", Columns: []string{IDColumn}})
	}

	hasPrimary := false
	for _, k := range keys {
		if err := checkColumns(res, k.Columns); err != nil {
			return nil, fmt.Errorf("unique key %q: %w", k.Name, err)
		}
		if k.Primary && !keyHasInternal(k) {
			hasPrimary = true
		}
	}

	ordered := make([]UniqueKey, 0, len(keys))
	for _, k := range keys {
		// The indexer's own surrogate key (_id) is never exposed; user keys come first.
		if keyHasInternal(k) {
			continue
		}
		if !hasPrimary && len(k.Columns) == 1 && k.Columns[0] == IDColumn {
			k.Primary = true
			hasPrimary = true
			ordered = append([]UniqueKey{k}, ordered...)
			continue
		}
		if k.Primary {
			ordered = append([]UniqueKey{k}, ordered...)
			continue
		}
		ordered = append(ordered, k)
	}
	res.uniqueKeys = ordered

	return res, nil
}

func hasKey(keys []UniqueKey, cols ...string) bool {
	for _, k := range keys {
		if sameColumns(k.Columns, cols) {
			return true
		}
	}
	return false
}

func keyHasInternal(k UniqueKey) bool {
	for _, c := range k.Columns {
		if IsInternal(c) {
			return true
		}
	}
	return false
}

func checkColumns(res *Resource, cols []string) error {
	if len(cols) == 0 {
		return fmt.Errorf("%w: no columns on %q", ErrUnknownColumn, res.Name)
	}
	for _, c := range cols {
		if _, ok := res.Codec.Attribute(c); !ok {
			return fmt.Errorf("%w: %q.%q", ErrUnknownColumn, res.Name, c)
		}
	}
	return nil
}

type namedForeignKey struct {
	ForeignKey
	forwardName  string
	backwardName string
}

// foreignKeys merges introspected constraints with tagged ones. Constraints touching a
// hidden table are dropped.
func (b *Builder) foreignKeys(cat *Catalog) ([]namedForeignKey, error) {
	out := make([]namedForeignKey, 0, len(b.fks))
	for _, fk := range b.fks {
		out = append(out, namedForeignKey{ForeignKey: fk})
	}

	if b.tags != nil {
		for _, table := range b.order {
			for _, tag := range b.tags.Tables[table].ForeignKeys {
				refCols := tag.RefColumns
				if len(refCols) == 0 {
					refCols = []string{IDColumn}
				}
				matched := false
				for i := range out {
					if out[i].Table == table && out[i].RefTable == tag.References && sameColumns(out[i].Columns, tag.Columns) {
						out[i].forwardName = tag.ForwardName
						out[i].backwardName = tag.BackwardName
						matched = true
					}
				}
				if matched {
					continue
				}
				out = append(out, namedForeignKey{
					ForeignKey: ForeignKey{
						Name:       fmt.Sprintf("%s_%s_fkey", table, strings.Join(tag.Columns, "_")),
						Table:      table,
						Columns:    tag.Columns,
						RefTable:   tag.References,
						RefColumns: refCols,
					},
					forwardName:  tag.ForwardName,
					backwardName: tag.BackwardName,
				})
			}
		}
	}

	kept := out[:0]
	for _, fk := range out {
		_, okLocal := cat.resources[fk.Table]
		_, okRemote := cat.resources[fk.RefTable]
		if !okLocal || !okRemote {
			if !b.known(fk.Table) || !b.known(fk.RefTable) {
				return nil, fmt.Errorf("foreign key %q: %w", fk.Name, ErrUnknownTable)
			}
			continue
		}
		kept = append(kept, fk)
	}
	return kept, nil
}

func (b *Builder) known(table string) bool {
	_, ok := b.tables[table]
	return ok
}

// link validates one foreign key and installs both of its directions.
func link(cat *Catalog, fk namedForeignKey) error {
	local := cat.resources[fk.Table]
	remote := cat.resources[fk.RefTable]

	if len(fk.Columns) != len(fk.RefColumns) || len(fk.Columns) == 0 {
		return fmt.Errorf("foreign key %q: %w", fk.Name, ErrRelationArity)
	}
	if err := checkColumns(local, fk.Columns); err != nil {
		return fmt.Errorf("foreign key %q: %w", fk.Name, err)
	}
	if err := checkColumns(remote, fk.RefColumns); err != nil {
		return fmt.Errorf("foreign key %q: %w", fk.Name, err)
	}
	for i := range fk.Columns {
		l, _ := local.Codec.Attribute(fk.Columns[i])
		r, _ := remote.Codec.Attribute(fk.RefColumns[i])
		if !l.Kind().Compatible(r.Kind()) {
			return fmt.Errorf("foreign key %q: %q.%q (%s) and %q.%q (%s): %w",
				fk.Name, local.Name, l.Name, l.Kind(), remote.Name, r.Name, r.Kind(), ErrRelationTypeMismatch)
		}
	}

	backwardCardinality := Many
	if _, ok := local.UniqueKeyByColumns(fk.Columns...); ok {
		backwardCardinality = One
	}

	forward := &Relation{
		Local:            local,
		Remote:           remote,
		LocalAttributes:  append([]string(nil), fk.Columns...),
		RemoteAttributes: append([]string(nil), fk.RefColumns...),
		Cardinality:      One,
		Direction:        Forward,
		Constraint:       fk.Name,
	}
	backward := &Relation{
		Local:            remote,
		Remote:           local,
		LocalAttributes:  append([]string(nil), fk.RefColumns...),
		RemoteAttributes: append([]string(nil), fk.Columns...),
		Cardinality:      backwardCardinality,
		Direction:        Backward,
		Constraint:       fk.Name,
	}
	forward.inverse = backward
	backward.inverse = forward

	var err error
	if forward.Name, err = relationName(local, fk.forwardName, forwardCandidates(fk.ForeignKey)); err != nil {
		return fmt.Errorf("foreign key %q: %w", fk.Name, err)
	}
	local.relations[forward.Name] = forward

	if backward.Name, err = relationName(remote, fk.backwardName, backwardCandidates(fk.ForeignKey)); err != nil {
		return fmt.Errorf("foreign key %q: %w", fk.Name, err)
	}
	remote.relations[backward.Name] = backward

	return nil
}

// forwardCandidates yields names for the relation read from the referencing table:
// owner_id becomes owner, and the remote table name is the fallback.
func forwardCandidates(fk ForeignKey) []string {
	var out []string
	if len(fk.Columns) == 1 {
		if base, ok := strings.CutSuffix(fk.Columns[0], "_id"); ok && base != "" {
			out = append(out, base)
		}
	}
	return append(out, fk.RefTable, fk.RefTable+"_by_"+strings.Join(fk.Columns, "_and_"))
}

// backwardCandidates yields names for the relation read from the referenced table: the
// referencing table name, disambiguated by column when a table references another twice.
func backwardCandidates(fk ForeignKey) []string {
	return []string{fk.Table, fk.Table + "_by_" + strings.Join(fk.Columns, "_and_")}
}

func relationName(res *Resource, override string, candidates []string) (string, error) {
	if override != "" {
		if err := validateIdentifier(override); err != nil {
			return "", err
		}
		if !nameFree(res, override) {
			return "", fmt.Errorf("%w: %q on %q", ErrDuplicateRelation, override, res.Name)
		}
		return override, nil
	}
	for _, n := range candidates {
		if nameFree(res, n) {
			return n, validateIdentifier(n)
		}
	}
	return "", fmt.Errorf("%w: %q on %q", ErrDuplicateRelation, candidates[len(candidates)-1], res.Name)
}

// nameFree reports whether a relation name clashes with neither another relation nor a
// column, since both share the filter object's key space.
func nameFree(res *Resource, name string) bool {
	if _, ok := res.relations[name]; ok {
		return false
	}
	if _, ok := res.Codec.Attribute(name); ok {
		return false
	}
	switch name {
	case "and", "or", "not":
		return false
	}
	return true
}
