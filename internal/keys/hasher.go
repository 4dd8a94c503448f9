package keys

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/subquery/query-subgraph/pkg/filter"
)

type hasher interface {
	WriteString(value string) error
}

// NewFilterHasher returns a hasher for a filter tree. Two trees hash alike only when they
// have the same shape, fields, operators and values, in the same order.
func NewFilterHasher(root filter.Node) *filterHasher {
	return &filterHasher{root: root}
}

type filterHasher struct {
	root filter.Node
}

func (f *filterHasher) Append(h hasher) error {
	// prefix to avoid overlap with previous strings written
	if err := h.WriteString("/"); err != nil {
		return err
	}
	return writeNode(h, f.root)
}

func writeNode(h hasher, n filter.Node) error {
	switch node := n.(type) {
	case nil:
		return h.WriteString("_;")
	case filter.Leaf:
		if err := h.WriteString(fmt.Sprintf("%s=", strconv.Quote(filter.FieldName(node.Field, node.Operator)))); err != nil {
			return err
		}
		if err := WriteValue(h, node.Value); err != nil {
			return err
		}
		return h.WriteString(";")
	case filter.And:
		tag := "and("
		if node.Object {
			tag = "obj("
		}
		return writeChildren(h, tag, node.Children)
	case filter.Or:
		return writeChildren(h, "or(", node.Children)
	case filter.Not:
		if err := h.WriteString("not("); err != nil {
			return err
		}
		if err := writeNode(h, node.Child); err != nil {
			return err
		}
		return h.WriteString(");")
	case filter.RelationFilter:
		if err := h.WriteString(fmt.Sprintf("rel(%s,", strconv.Quote(node.Relation))); err != nil {
			return err
		}
		if err := writeNode(h, node.Subtree); err != nil {
			return err
		}
		return h.WriteString(");")
	default:
		return fmt.Errorf("unknown filter node %T", n)
	}
}

func writeChildren(h hasher, tag string, children []filter.Node) error {
	if err := h.WriteString(tag); err != nil {
		return err
	}
	for _, child := range children {
		if err := writeNode(h, child); err != nil {
			return err
		}
	}
	return h.WriteString(");")
}

// WriteValue writes a raw filter value with a type tag, so "1" and 1 hash differently.
func WriteValue(h hasher, v any) error {
	var s string
	switch val := v.(type) {
	case nil:
		s = "null"
	case bool:
		s = "b:" + strconv.FormatBool(val)
	case string:
		s = "s:" + strconv.Quote(val)
	case json.Number:
		s = "n:" + val.String()
	case int:
		s = "i:" + strconv.Itoa(val)
	case int64:
		s = "i:" + strconv.FormatInt(val, 10)
	case float64:
		s = "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case []byte:
		s = "x:" + hex.EncodeToString(val)
	case time.Time:
		s = "t:" + val.UTC().Format(time.RFC3339Nano)
	case []any:
		if err := h.WriteString("["); err != nil {
			return err
		}
		for _, elem := range val {
			if err := WriteValue(h, elem); err != nil {
				return err
			}
			if err := h.WriteString(","); err != nil {
				return err
			}
		}
		return h.WriteString("]")
	case map[string]any:
		// Only reachable for values the guard rejects; hashed anyway so keys stay total.
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		s = "o:" + string(b)
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return h.WriteString(s)
}
