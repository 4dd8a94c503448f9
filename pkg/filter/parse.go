package filter

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

// Filter object keys with a fixed meaning. Every other key is a column field or a relation.
const (
	KeyAnd = "and"
	KeyOr  = "or"
	KeyNot = "not"
)

// ParseJSON parses a filter object, as found under "where" in a request body, against res.
func ParseJSON(res *catalog.Resource, data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, newError(CodeInvalidValue, []string{"where"}, "malformed JSON")
	}
	return Parse(res, gjson.ParseBytes(data))
}

// Parse builds a filter tree from an already located JSON value. A missing or null value
// means no filter.
func Parse(res *catalog.Resource, where gjson.Result) (Node, error) {
	if !where.Exists() || where.Type == gjson.Null {
		return nil, nil
	}
	return parseObject(res, where, nil)
}

func parseObject(res *catalog.Resource, obj gjson.Result, path []string) (Node, error) {
	if obj.Type == gjson.Null {
		return nil, nil
	}
	if !obj.IsObject() {
		return nil, newError(CodeInvalidValue, path, "expected an object")
	}

	and := And{Object: true}
	var err error
	obj.ForEach(func(k, v gjson.Result) bool {
		var n Node
		n, err = parseField(res, k.String(), v, path)
		if err != nil {
			return false
		}
		and.Children = append(and.Children, n)
		return true
	})
	if err != nil {
		return nil, err
	}
	return and, nil
}

func parseField(res *catalog.Resource, key string, v gjson.Result, path []string) (Node, error) {
	switch key {
	case KeyAnd, KeyOr:
		children, err := parseList(res, key, v, path)
		if err != nil {
			return nil, err
		}
		if key == KeyOr {
			return Or{Children: children}, nil
		}
		return And{Children: children}, nil
	case KeyNot:
		child, err := parseObject(res, v, append(path, key))
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	}

	if rel, ok := res.Relation(key); ok {
		sub, err := parseObject(rel.Remote, v, append(path, key))
		if err != nil {
			return nil, err
		}
		return RelationFilter{Relation: key, Subtree: sub}, nil
	}

	attr, op, ok := ParseFieldName(res, key)
	if !ok && v.IsObject() {
		return nil, newError(CodeUnknownRelation, append(path, key), "%q has no relation %q", res.Name, key)
	}
	if !ok || !IsLegal(attr.Kind(), op) {
		return nil, newError(CodeUnknownField, append(path, key), "%q has no filter field %q", res.Name, key)
	}
	return Leaf{Field: attr.Name, Operator: op, Value: value(v)}, nil
}

func parseList(res *catalog.Resource, key string, v gjson.Result, path []string) ([]Node, error) {
	if v.Type == gjson.Null {
		// A null list is reported by the guard, like any other null.
		return []Node{nil}, nil
	}
	if !v.IsArray() {
		return nil, newError(CodeInvalidValue, append(path, key), "expected a list")
	}
	entries := v.Array()
	out := make([]Node, 0, len(entries))
	for i, e := range entries {
		n, err := parseObject(res, e, appendPath(path, key, i))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// value converts a JSON value into the raw leaf representation. Numbers keep their
// literal text so large integers and decimals are not rounded through float64.
func value(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	case gjson.JSON:
		if v.IsArray() {
			arr := v.Array()
			out := make([]any, len(arr))
			for i, e := range arr {
				out[i] = value(e)
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(k, e gjson.Result) bool {
			out[k.String()] = value(e)
			return true
		})
		return out
	default:
		return nil
	}
}
