package keys

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/filter"
)

type stringWriter struct {
	strings.Builder
	fail bool
}

func (w *stringWriter) WriteString(s string) error {
	if w.fail {
		return errors.New("error")
	}
	_, _ = w.Builder.WriteString(s)
	return nil
}

func TestWriteValue(t *testing.T) {
	var cases = map[string]struct {
		value  any
		output string
		error  bool
	}{
		"list": {
			value:  []any{"A", nil, true, json.Number("1111111111"), int64(2), 1.5, []byte{0xde, 0xad}},
			output: `[s:"A",null,b:true,n:1111111111,i:2,f:1.5,x:dead,]`,
		},
		"time": {
			value:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			output: "t:2024-01-02T03:04:05Z",
		},
		"string_is_quoted": {
			value:  `a"b`,
			output: `s:"a\"b"`,
		},
		"unsupported": {
			value: struct{}{},
			error: true,
		},
	}

	for name, test := range cases {
		t.Run(name, func(t *testing.T) {
			w := &stringWriter{}
			err := WriteValue(w, test.value)
			if test.error {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.output, w.String())
		})
	}

	require.Error(t, WriteValue(&stringWriter{fail: true}, []any{"A"}))
}

func filterKey(t *testing.T, n filter.Node) uint64 {
	t.Helper()
	k := NewPlanKey()
	require.NoError(t, NewFilterHasher(n).Append(k))
	return k.Sum()
}

func TestFilterHasher(t *testing.T) {
	leaf := func(field string, op filter.Operator, v any) filter.Node {
		return filter.Leaf{Field: field, Operator: op, Value: v}
	}

	base := filter.And{Children: []filter.Node{
		leaf("first_seen", filter.OpGreaterOrEqual, json.Number("29258")),
		filter.RelationFilter{Relation: "owner", Subtree: filter.And{Object: true, Children: []filter.Node{
			leaf("name", filter.OpEqual, "alice"),
		}}},
	}}
	require.Equal(t, filterKey(t, base), filterKey(t, base))

	others := map[string]filter.Node{
		"operator": filter.And{Children: []filter.Node{
			leaf("first_seen", filter.OpGreaterThan, json.Number("29258")),
			base.Children[1],
		}},
		"value_type": filter.And{Children: []filter.Node{
			leaf("first_seen", filter.OpGreaterOrEqual, "29258"),
			base.Children[1],
		}},
		"order": filter.And{Children: []filter.Node{
			base.Children[1],
			base.Children[0],
		}},
		"or": filter.Or{Children: base.Children},
		"not": filter.Not{Child: base},
		"nil": nil,
	}
	for name, n := range others {
		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, filterKey(t, base), filterKey(t, n))
		})
	}
}

func TestFilterHasherPropagatesErrors(t *testing.T) {
	n := filter.Leaf{Field: "x", Operator: filter.OpEqual, Value: "y"}
	require.Error(t, NewFilterHasher(n).Append(&stringWriter{fail: true}))

	bad := filter.Leaf{Field: "x", Operator: filter.OpEqual, Value: struct{}{}}
	require.Error(t, NewFilterHasher(bad).Append(&stringWriter{}))
}
