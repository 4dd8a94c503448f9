package dialect

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampFormat is how timestamps are stored by engines without a native timestamp
// type. It matches what the sqlite driver writes for time.Time values.
const TimestampFormat = "2006-01-02 15:04:05.999999999-07:00"

// jsonList encodes a typed slice as a JSON array for engines that take lists as JSON.
// Binary values become upper case hex, matching hex(column).
func jsonList(values any) (string, error) {
	var v any
	switch vals := values.(type) {
	case [][]byte:
		out := make([]string, len(vals))
		for i, b := range vals {
			out[i] = strings.ToUpper(hex.EncodeToString(b))
		}
		v = out
	case []time.Time:
		out := make([]string, len(vals))
		for i, t := range vals {
			out[i] = t.Format(TimestampFormat)
		}
		v = out
	case []bool, []int64, []float64, []string:
		v = vals
	default:
		return "", fmt.Errorf("unsupported list type %T", values)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
