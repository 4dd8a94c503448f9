package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	tests := []struct {
		name  string
		guard Guard
		node  Node
		err   error
	}{
		{
			name: "nil_root",
		},
		{
			name: "empty_root_object",
			node: And{Object: true},
		},
		{
			name: "empty_and_list",
			node: And{Children: []Node{And{}}, Object: true},
		},
		{
			name: "null_leaf",
			node: Leaf{Field: "name"},
			err:  ErrNullNotAllowed,
		},
		{
			name:  "null_leaf_allowed",
			guard: Guard{AllowNull: true},
			node:  Leaf{Field: "name"},
		},
		{
			name: "empty_object_value",
			node: Leaf{Field: "name", Value: map[string]any{}},
			err:  ErrEmptyObjectNotAllowed,
		},
		{
			name: "nested_empty_object",
			node: Or{Children: []Node{Leaf{Field: "name", Value: "a"}, And{Object: true}}},
			err:  ErrEmptyObjectNotAllowed,
		},
		{
			name:  "nested_empty_object_allowed",
			guard: Guard{AllowEmptyObject: true},
			node:  Not{Child: And{Object: true}},
		},
		{
			name: "null_relation_subtree",
			node: RelationFilter{Relation: "owner"},
			err:  ErrNullNotAllowed,
		},
		{
			name: "list_elements_checked_individually",
			node: Leaf{Field: "id", Operator: OpIn, Value: []any{"a", "b", nil}},
			err:  ErrInvalidListElement,
		},
		{
			name: "typed_list",
			node: Leaf{Field: "first_seen", Operator: OpNotIn, Value: []int64{1, 2}},
		},
		{
			name: "bytes_are_scalar",
			node: Leaf{Field: "data", Operator: OpEqual, Value: []byte{1}},
		},
		{
			name: "first_violation_wins",
			node: And{Children: []Node{
				Leaf{Field: "a", Value: map[string]any{}},
				Leaf{Field: "b"},
			}},
			err: ErrEmptyObjectNotAllowed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.guard.Check(tc.node)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGuardErrorPath(t *testing.T) {
	node := And{Object: true, Children: []Node{
		Or{Children: []Node{
			And{Object: true, Children: []Node{Leaf{Field: "name", Value: "x"}}},
			And{Object: true, Children: []Node{RelationFilter{Relation: "owner", Subtree: And{Object: true, Children: []Node{
				Leaf{Field: "name", Operator: OpContains},
			}}}}},
		}},
	}}

	err := Guard{}.Check(node)
	require.ErrorIs(t, err, ErrNullNotAllowed)
	require.EqualError(t, err, "or[1].owner.name_contains: "+ErrNullNotAllowed.Error())
}
