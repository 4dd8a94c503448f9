package filter

import (
	"fmt"
	"reflect"
	"strconv"
)

// Guard rejects null and empty inputs before anything is compiled. The zero value forbids
// both, which is the default policy.
type Guard struct {
	// AllowNull makes null leaves and null list elements mean "no condition".
	AllowNull bool
	// AllowEmptyObject makes an empty filter object mean "no condition".
	AllowEmptyObject bool
}

// Check walks the whole tree once and returns the first violation. The root may be nil
// or an empty object: a request without a filter matches everything.
func (g Guard) Check(root Node) error {
	if root == nil {
		return nil
	}
	if and, ok := root.(And); ok && and.Object && len(and.Children) == 0 {
		return nil
	}
	return g.check(root, nil)
}

func (g Guard) check(n Node, path []string) error {
	switch node := n.(type) {
	case nil:
		if g.AllowNull {
			return nil
		}
		return newError(CodeNullNotAllowed, path, "")
	case Leaf:
		return g.checkLeaf(node, append(path, FieldName(node.Field, node.Operator)))
	case And:
		if node.Object && len(node.Children) == 0 && !g.AllowEmptyObject {
			return newError(CodeEmptyObjectNotAllowed, path, "")
		}
		for i, c := range node.Children {
			p := path
			if !node.Object {
				p = append(path, "and["+strconv.Itoa(i)+"]")
			}
			if err := g.check(c, p); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for i, c := range node.Children {
			if err := g.check(c, append(path, "or["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
		return nil
	case Not:
		return g.check(node.Child, append(path, "not"))
	case RelationFilter:
		return g.check(node.Subtree, append(path, node.Relation))
	default:
		return fmt.Errorf("unknown filter node %T", n)
	}
}

func (g Guard) checkLeaf(leaf Leaf, path []string) error {
	if leaf.Value == nil {
		if g.AllowNull {
			return nil
		}
		return newError(CodeNullNotAllowed, path, "")
	}
	if isEmptyObject(leaf.Value) && !g.AllowEmptyObject {
		return newError(CodeEmptyObjectNotAllowed, path, "")
	}

	list, isList := asList(leaf.Value)
	switch ValueShape(leaf.Operator) {
	case ShapeList:
		if !isList {
			return newError(CodeInvalidValue, path, "%s expects a list", FieldName(leaf.Field, leaf.Operator))
		}
		for i, elem := range list {
			if elem == nil && !g.AllowNull {
				return &CompileError{
					Code: CodeInvalidListElement,
					Path: append([]string(nil), path...),
					Err:  fmt.Errorf("%w: element %d: %w", ErrInvalidListElement, i, ErrNullNotAllowed),
				}
			}
			if isEmptyObject(elem) && !g.AllowEmptyObject {
				return &CompileError{
					Code: CodeInvalidListElement,
					Path: append([]string(nil), path...),
					Err:  fmt.Errorf("%w: element %d: %w", ErrInvalidListElement, i, ErrEmptyObjectNotAllowed),
				}
			}
		}
	case ShapeScalar:
		if isList {
			return newError(CodeInvalidValue, path, "%s expects a single value", FieldName(leaf.Field, leaf.Operator))
		}
	}
	return nil
}

func isEmptyObject(v any) bool {
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}

// asList returns v as a generic list. Byte slices are values, not lists.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
