package filter

// Node is one element of a filter tree. Trees are built fresh for every request and are
// never modified once built.
type Node interface {
	node()
}

// Leaf applies Operator to the column named Field. Value is the caller's raw input: nil,
// bool, string, json.Number, float64, int64, or []any for list operators.
type Leaf struct {
	Field    string
	Operator Operator
	Value    any
}

// And is the conjunction of Children. Object is set when the conjunction stands for one
// filter object of the request, which must not be empty below the root.
type And struct {
	Children []Node
	Object   bool
}

// Or is the disjunction of Children. Each child is reduced as a conjunction first.
type Or struct {
	Children []Node
}

// Not negates Child.
type Not struct {
	Child Node
}

// RelationFilter holds when some row reached through Relation satisfies Subtree.
type RelationFilter struct {
	Relation string
	Subtree  Node
}

func (Leaf) node()           {}
func (And) node()            {}
func (Or) node()             {}
func (Not) node()            {}
func (RelationFilter) node() {}
