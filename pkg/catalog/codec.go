package catalog

import (
	"fmt"
	"strings"
)

// InternalPrefix marks bookkeeping columns written by the indexer. Attributes carrying it
// never appear in filters, orderings or projections.
const InternalPrefix = "_"

// IsInternal reports whether name is an internal bookkeeping attribute.
func IsInternal(name string) bool {
	return strings.HasPrefix(name, InternalPrefix)
}

// Codec describes a scalar type, or a composite type with ordered attributes.
type Codec struct {
	Name   string
	PgType string
	Kind   ScalarKind

	attributes []Attribute
	index      map[string]int
}

// Attribute is a named member of a composite codec.
type Attribute struct {
	Name    string
	Codec   *Codec
	NotNull bool
}

// Kind is shorthand for the attribute codec's scalar kind.
func (a Attribute) Kind() ScalarKind {
	if a.Codec == nil {
		return KindUnsupported
	}
	return a.Codec.Kind
}

// IsInternal reports whether the attribute is hidden from user-facing paths.
func (a Attribute) IsInternal() bool {
	return IsInternal(a.Name)
}

// ScalarCodec returns the codec of a postgres scalar type.
func ScalarCodec(pgType string) *Codec {
	t := NormalizePgType(pgType)
	return &Codec{
		Name:   t,
		PgType: t,
		Kind:   KindFromPgType(t),
	}
}

// NewRecordCodec builds a composite codec. Attribute names must be unique and quotable.
func NewRecordCodec(name string, attrs []Attribute) (*Codec, error) {
	c := &Codec{
		Name:       name,
		PgType:     name,
		Kind:       KindUnsupported,
		attributes: make([]Attribute, 0, len(attrs)),
		index:      make(map[string]int, len(attrs)),
	}

	for _, a := range attrs {
		if err := validateIdentifier(a.Name); err != nil {
			return nil, fmt.Errorf("codec %q: %w", name, err)
		}
		if _, ok := c.index[a.Name]; ok {
			return nil, fmt.Errorf("codec %q attribute %q: %w", name, a.Name, ErrDuplicateAttribute)
		}
		if a.Codec == nil {
			a.Codec = ScalarCodec("unknown")
		}
		c.index[a.Name] = len(c.attributes)
		c.attributes = append(c.attributes, a)
	}

	return c, nil
}

// IsComposite reports whether the codec carries attributes.
func (c *Codec) IsComposite() bool {
	return c.index != nil
}

// Attributes returns the attributes in declaration order. The slice must not be modified.
func (c *Codec) Attributes() []Attribute {
	return c.attributes
}

// Attribute looks up an attribute by name.
func (c *Codec) Attribute(name string) (Attribute, bool) {
	i, ok := c.index[name]
	if !ok {
		return Attribute{}, false
	}
	return c.attributes[i], true
}

func validateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if strings.ContainsAny(name, "?\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
