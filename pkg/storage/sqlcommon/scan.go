package sqlcommon

import (
	"database/sql"
	"encoding/json"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/storage"
)

// scanRows reads every row. kinds, when given, says how to normalize driver values column
// by column; drivers differ in whether text comes back as string or []byte. names replace
// the driver's column names when they describe the same number of columns.
func scanRows(rows *sql.Rows, names []string, kinds []catalog.ScalarKind) ([]storage.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(names) == len(cols) {
		cols = names
	}

	out := make([]storage.Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		for i, v := range values {
			kind := catalog.KindUnsupported
			if i < len(kinds) {
				kind = kinds[i]
			}
			values[i] = normalize(kind, v)
		}
		out = append(out, storage.Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(kind catalog.ScalarKind, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	// Drivers reuse scan buffers.
	b = append([]byte(nil), b...)

	switch kind {
	case catalog.KindBinary:
		return b
	case catalog.KindUnsupported:
		if json.Valid(b) {
			return json.RawMessage(b)
		}
		return string(b)
	case catalog.KindBoolean, catalog.KindInt, catalog.KindFloat, catalog.KindNumeric,
		catalog.KindTimestamp, catalog.KindText:
		return string(b)
	default:
		return string(b)
	}
}
