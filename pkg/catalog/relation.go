package catalog

// Cardinality tells how many remote rows a relation may reach from one local row.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Direction tells which side of the foreign key holds the referencing columns.
type Direction int

const (
	// Forward relations are read from the table that holds the foreign key.
	Forward Direction = iota
	// Backward relations are read from the referenced table.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Relation links a local resource to a remote one through ordered attribute pairs.
// LocalAttributes[i] on the local resource equals RemoteAttributes[i] on the remote.
type Relation struct {
	Name             string
	Local            *Resource
	Remote           *Resource
	LocalAttributes  []string
	RemoteAttributes []string
	Cardinality      Cardinality
	Direction        Direction
	Constraint       string

	inverse *Relation
}

// Inverse returns the relation walked in the opposite direction.
func (r *Relation) Inverse() *Relation {
	return r.inverse
}
