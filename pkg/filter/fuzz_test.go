package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

// FuzzLeafInjection checks that the statement text never depends on the caller's value:
// every text operator must render exactly the same SQL for an adversarial string as for
// a harmless one, with the value only present among the bound arguments.
func FuzzLeafInjection(f *testing.F) {
	for _, seed := range []string{
		`'; DROP TABLE accounts; --`,
		`" OR 1=1 --`,
		`\' OR '1'='1`,
		`50%`,
		`_%_\`,
		`?`,
		`$1`,
		"\x00",
	} {
		f.Add(seed)
	}

	c := testCompiler(f)

	f.Fuzz(func(t *testing.T, value string) {
		for _, op := range LegalOperators(catalog.KindText) {
			var v, benign any = value, "x"
			if ValueShape(op) == ShapeList {
				v, benign = []any{value}, []any{"x"}
			}

			want, _, err := mustCompileLeaf(t, c, Leaf{Field: "name", Operator: op, Value: benign})
			require.NoError(t, err)

			got, args, err := mustCompileLeaf(t, c, Leaf{Field: "name", Operator: op, Value: v})
			require.NoError(t, err)
			require.Equal(t, want, got, op.String())
			require.Len(t, args, 1)

			if len(value) > 3 && !strings.Contains(want, value) {
				require.NotContains(t, got, value)
			}
		}
	})
}

func mustCompileLeaf(t *testing.T, c *Compiler, leaf Leaf) (string, []any, error) {
	t.Helper()
	compiled, err := c.Compile(Request{Resource: "accounts", Filter: leaf, AsOf: int64Ptr(1)})
	if err != nil {
		return "", nil, err
	}
	sql, args, err := compiled.ToSql()
	if err != nil {
		return "", nil, err
	}
	// drop the revision argument
	return sql, args[:len(args)-1], nil
}
