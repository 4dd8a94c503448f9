package filter

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParse(t *testing.T) {
	cat := testCatalog(t)
	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)

	node, err := ParseJSON(accounts, []byte(`{
		"first_seen_in": [1, 2],
		"or": [{"name_contains_nocase": "a"}, {"active": true}],
		"not": {"balance_gt": 1.5},
		"transfers": {"amount_lt": "9"},
		"and": []
	}`))
	require.NoError(t, err)

	expected := And{Object: true, Children: []Node{
		Leaf{Field: "first_seen", Operator: OpIn, Value: []any{json.Number("1"), json.Number("2")}},
		Or{Children: []Node{
			And{Object: true, Children: []Node{Leaf{Field: "name", Operator: OpContainsNoCase, Value: "a"}}},
			And{Object: true, Children: []Node{Leaf{Field: "active", Operator: OpEqual, Value: true}}},
		}},
		Not{Child: And{Object: true, Children: []Node{Leaf{Field: "balance", Operator: OpGreaterThan, Value: json.Number("1.5")}}}},
		RelationFilter{Relation: "transfers", Subtree: And{Object: true, Children: []Node{Leaf{Field: "amount", Operator: OpLessThan, Value: "9"}}}},
		And{Children: []Node{}},
	}}

	if diff := cmp.Diff(expected, node); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	cat := testCatalog(t)
	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)

	for _, tc := range []struct {
		where string
		code  Code
	}{
		{where: `[1]`, code: CodeInvalidValue},
		{where: `{"and": {"name": "a"}}`, code: CodeInvalidValue},
		{where: `{"not": [1]}`, code: CodeInvalidValue},
		{where: `{"owner": "x"}`, code: CodeInvalidValue},
		{where: `{"owner": {"nope": 1}}`, code: CodeUnknownField},
		{where: `{"ownr": {"name": "a"}}`, code: CodeUnknownRelation},
		{where: `{"owner": {"acount": {}}}`, code: CodeUnknownRelation},
		{where: `{"nope": [1]}`, code: CodeUnknownField},
		{where: `{"name_like": "a"}`, code: CodeUnknownField},
		{where: `{"name": `, code: CodeInvalidValue},
	} {
		_, err := ParseJSON(accounts, []byte(tc.where))
		require.Equal(t, tc.code, CodeOf(err), tc.where)
	}
}

func TestParseMissing(t *testing.T) {
	cat := testCatalog(t)
	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)

	node, err := Parse(accounts, gjson.Get(`{"first": 10}`, "where"))
	require.NoError(t, err)
	require.Nil(t, node)

	node, err = Parse(accounts, gjson.Get(`{"where": null}`, "where"))
	require.NoError(t, err)
	require.Nil(t, node)
}
