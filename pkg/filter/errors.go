package filter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedOperator         = errors.New("operator not supported for column type")
	ErrUnknownRelation             = errors.New("unknown relation")
	ErrUnknownSortColumn           = errors.New("unknown sort column")
	ErrUnknownField                = errors.New("unknown filter field")
	ErrNullNotAllowed              = errors.New("null literals are forbidden in filter argument input")
	ErrEmptyObjectNotAllowed       = errors.New("empty objects are forbidden in filter argument input")
	ErrInvalidListElement          = errors.New("invalid list element")
	ErrInvalidValue                = errors.New("invalid filter value")
	ErrInvalidRevision             = errors.New("block number must be a non-negative integer")
	ErrOrderDirectionWithoutColumn = errors.New("orderBy field is required")
)

// Code classifies a compile failure. All codes except UnsupportedOperator describe a bad
// request; UnsupportedOperator describes a bad catalog and is raised at startup.
type Code string

const (
	CodeUnsupportedOperator   Code = "UnsupportedOperator"
	CodeUnknownRelation       Code = "UnknownRelation"
	CodeUnknownSortColumn     Code = "UnknownSortColumn"
	CodeUnknownField          Code = "UnknownField"
	CodeNullNotAllowed        Code = "NullNotAllowed"
	CodeEmptyObjectNotAllowed Code = "EmptyObjectNotAllowed"
	CodeInvalidListElement    Code = "InvalidListElement"
	CodeInvalidValue          Code = "InvalidValue"
	CodeInvalidRevision       Code = "InvalidRevision"
	CodeInvalidOrder          Code = "InvalidOrder"
)

var codeErrors = map[Code]error{
	CodeUnsupportedOperator:   ErrUnsupportedOperator,
	CodeUnknownRelation:       ErrUnknownRelation,
	CodeUnknownSortColumn:     ErrUnknownSortColumn,
	CodeUnknownField:          ErrUnknownField,
	CodeNullNotAllowed:        ErrNullNotAllowed,
	CodeEmptyObjectNotAllowed: ErrEmptyObjectNotAllowed,
	CodeInvalidListElement:    ErrInvalidListElement,
	CodeInvalidValue:          ErrInvalidValue,
	CodeInvalidRevision:       ErrInvalidRevision,
	CodeInvalidOrder:          ErrOrderDirectionWithoutColumn,
}

// CompileError reports where in the filter tree compilation failed.
type CompileError struct {
	Code Code
	Path []string
	Err  error
}

func (e *CompileError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Path, "."), e.Err.Error())
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's code, so errors.Is works even when Err carries
// extra detail.
func (e *CompileError) Is(target error) bool {
	return codeErrors[e.Code] == target
}

func newError(code Code, path []string, format string, args ...any) *CompileError {
	err := codeErrors[code]
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]any{err}, args...)...)
	}
	return &CompileError{Code: code, Path: append([]string(nil), path...), Err: err}
}

// CodeOf returns the code of a compile error, or "" for any other error.
func CodeOf(err error) Code {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
