package filter

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// coerceScalar converts a raw input value into the Go type bound for a column of kind.
// Numeric values become their canonical decimal string so no precision is lost.
func coerceScalar(kind catalog.ScalarKind, v any) (any, error) {
	switch kind {
	case catalog.KindBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case catalog.KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case json.Number:
			return strconv.ParseInt(n.String(), 10, 64)
		case string:
			return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		case float64:
			if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
				return nil, fmt.Errorf("%v is not an integer", n)
			}
			return int64(n), nil
		}
	case catalog.KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		case string:
			return strconv.ParseFloat(strings.TrimSpace(n), 64)
		}
	case catalog.KindNumeric:
		var (
			d   decimal.Decimal
			err error
		)
		switch n := v.(type) {
		case decimal.Decimal:
			d = n
		case json.Number:
			d, err = decimal.NewFromString(n.String())
		case string:
			d, err = decimal.NewFromString(strings.TrimSpace(n))
		case float64:
			d = decimal.NewFromFloat(n)
		case int64:
			d = decimal.NewFromInt(n)
		case int:
			d = decimal.NewFromInt(int64(n))
		default:
			return nil, fmt.Errorf("cannot use %T as numeric", v)
		}
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case catalog.KindTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			for _, layout := range timestampLayouts {
				if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
					return parsed, nil
				}
			}
			return nil, fmt.Errorf("cannot parse %q as a timestamp", t)
		case json.Number:
			ms, err := t.Int64()
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC(), nil
		}
	case catalog.KindBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			s := strings.TrimPrefix(strings.TrimPrefix(b, "0x"), "\\x")
			return hex.DecodeString(s)
		}
	case catalog.KindText:
		switch s := v.(type) {
		case string:
			return s, nil
		case json.Number:
			return s.String(), nil
		}
	case catalog.KindUnsupported:
		return nil, fmt.Errorf("column type cannot be filtered")
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, kind)
}

// coerceList converts every element and returns a typed slice the drivers can bind as
// one array parameter. Null elements are dropped; the guard has already decided whether
// they are allowed.
func coerceList(kind catalog.ScalarKind, list []any) (any, int, error) {
	var (
		bools   []bool
		bins    [][]byte
		ints    []int64
		floats  []float64
		strs    []string
		stamps  []time.Time
		skipped int
	)

	for i, elem := range list {
		if elem == nil {
			skipped++
			continue
		}
		v, err := coerceScalar(kind, elem)
		if err != nil {
			return nil, i, err
		}
		switch x := v.(type) {
		case bool:
			bools = append(bools, x)
		case []byte:
			bins = append(bins, x)
		case int64:
			ints = append(ints, x)
		case float64:
			floats = append(floats, x)
		case string:
			strs = append(strs, x)
		case time.Time:
			stamps = append(stamps, x)
		}
	}

	n := len(list) - skipped
	switch kind {
	case catalog.KindBoolean:
		return nonNil(bools, n), -1, nil
	case catalog.KindBinary:
		return nonNil(bins, n), -1, nil
	case catalog.KindInt:
		return nonNil(ints, n), -1, nil
	case catalog.KindFloat:
		return nonNil(floats, n), -1, nil
	case catalog.KindTimestamp:
		return nonNil(stamps, n), -1, nil
	case catalog.KindNumeric, catalog.KindText:
		return nonNil(strs, n), -1, nil
	case catalog.KindUnsupported:
		return nil, 0, fmt.Errorf("column type cannot be filtered")
	default:
		return nil, 0, fmt.Errorf("column type cannot be filtered")
	}
}

// nonNil keeps empty lists non-nil so they bind as an empty array rather than NULL.
func nonNil[T any](s []T, capacity int) []T {
	if s == nil {
		return make([]T, 0, capacity)
	}
	return s
}
