package filter

import (
	"fmt"
	"strings"
)

// Direction is the sort direction of an ordering.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SQL returns the keyword for the direction.
func (d Direction) SQL() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection accepts asc and desc in any case. An empty string is ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	default:
		return Ascending, newError(CodeInvalidOrder, []string{"orderDirection"}, "unknown direction %q", s)
	}
}

// OrderSpec sorts by one column. It does not make the order total: callers paginating
// over columns with duplicates must add their own tie-break.
type OrderSpec struct {
	Attribute string
	Direction Direction
}

// NewOrderSpec builds an OrderSpec from request arguments. A direction without a column is
// rejected.
func NewOrderSpec(orderBy, direction string) (*OrderSpec, error) {
	if orderBy == "" {
		if direction != "" {
			return nil, newError(CodeInvalidOrder, []string{"orderDirection"}, "")
		}
		return nil, nil
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	return &OrderSpec{Attribute: orderBy, Direction: dir}, nil
}

// orderBy validates spec against t and renders the ORDER BY term.
func (c *Compiler) orderBy(t target, spec *OrderSpec) ([]string, error) {
	if spec == nil {
		return nil, nil
	}
	attr, ok := t.res.UserAttribute(spec.Attribute)
	if !ok {
		return nil, newError(CodeUnknownSortColumn, []string{"orderBy"}, "%q has no column %q", t.res.Name, spec.Attribute)
	}
	return []string{fmt.Sprintf("%s %s", t.column(c.dialect, attr.Name), spec.Direction.SQL())}, nil
}
