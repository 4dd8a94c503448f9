package filter

import (
	"encoding/json"
	"fmt"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
)

var sampleValues = map[catalog.ScalarKind]any{
	catalog.KindBoolean:   true,
	catalog.KindBinary:    "0x00",
	catalog.KindInt:       json.Number("1"),
	catalog.KindFloat:     json.Number("1.5"),
	catalog.KindNumeric:   json.Number("1"),
	catalog.KindTimestamp: "2020-01-01T00:00:00Z",
	catalog.KindText:      "a",
}

// CheckCatalog compiles every filter field of every resource once with a sample value. It
// runs at startup so a column whose type cannot serve one of its operators fails the
// process instead of a request.
func CheckCatalog(cat *catalog.Catalog, d dialect.Dialect) error {
	s := &scope{dialect: d, revision: AllRevisions(), nextAlias: 1}
	for _, res := range cat.Resources() {
		t := target{res: res, alias: RootAlias}
		for _, attr := range res.UserAttributes() {
			sample, ok := sampleValues[attr.Kind()]
			if !ok {
				continue
			}
			for _, op := range LegalOperators(attr.Kind()) {
				v := sample
				if ValueShape(op) == ShapeList {
					v = []any{sample}
				}
				leaf := Leaf{Field: attr.Name, Operator: op, Value: v}
				pred, err := s.condition(t, leaf, []string{res.Name, FieldName(attr.Name, op)})
				if err == nil {
					_, _, err = pred.ToSql()
				}
				if err != nil {
					return &CompileError{
						Code: CodeUnsupportedOperator,
						Path: []string{res.Name, FieldName(attr.Name, op)},
						Err:  fmt.Errorf("%w: %w", ErrUnsupportedOperator, err),
					}
				}
			}
		}
	}
	return nil
}
