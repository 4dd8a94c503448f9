// Package errors translates the errors of the query pipeline into the JSON error bodies
// clients see.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/filter"
	"github.com/subquery/query-subgraph/pkg/metadata"
	"github.com/subquery/query-subgraph/pkg/query"
	"github.com/subquery/query-subgraph/pkg/storage"
)

const (
	InternalServerErrorMsg = "Internal Server Error"

	CodeInternal          = "internal_error"
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidPagination = "invalid_pagination"
	CodeUnknownResource   = "unknown_resource"
	CodeUnknownUniqueKey  = "unknown_unique_key"
	CodeNotFound          = "not_found"
	CodeDeadlineExceeded  = "deadline_exceeded"
	CodeCancelled         = "request_cancelled"
)

var (
	// RequestDeadlineExceeded is returned when a statement ran past the query timeout.
	RequestDeadlineExceeded = &EncodedError{HTTPStatusCode: http.StatusGatewayTimeout, Code: CodeDeadlineExceeded, Message: "Request Deadline Exceeded"}

	// RequestCancelled is returned when the client went away before the response was ready.
	RequestCancelled = &EncodedError{HTTPStatusCode: 499, Code: CodeCancelled, Message: "Request Cancelled"}

	// NotFound is returned by lookups that matched no row.
	NotFound = &EncodedError{HTTPStatusCode: http.StatusNotFound, Code: CodeNotFound, Message: "Not Found"}
)

// EncodedError is the body of every non 2xx response.
type EncodedError struct {
	HTTPStatusCode int      `json:"-"`
	Code           string   `json:"code"`
	Message        string   `json:"message"`
	Path           []string `json:"path,omitempty"`
}

func (e *EncodedError) Error() string {
	return e.Message
}

// IsInternal reports whether the error is the server's fault.
func (e *EncodedError) IsInternal() bool {
	return e.HTTPStatusCode >= http.StatusInternalServerError && e.HTTPStatusCode != http.StatusGatewayTimeout
}

// Write writes the error as a JSON response.
func (e *EncodedError) Write(w http.ResponseWriter) {
	body, err := json.Marshal(e)
	if err != nil {
		body = []byte(`{"code":"` + CodeInternal + `","message":"` + InternalServerErrorMsg + `"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatusCode)
	_, _ = w.Write(body)
}

// InvalidRequest reports a request the server could not make sense of.
func InvalidRequest(format string, args ...any) *EncodedError {
	return &EncodedError{HTTPStatusCode: http.StatusBadRequest, Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// InternalError hides the cause of a failure from the client. The cause is kept for logs.
type InternalError struct {
	public   *EncodedError
	internal error
}

// NewInternalError wraps internal behind a public message. An empty message becomes the
// generic internal server error message.
func NewInternalError(public string, internal error) InternalError {
	if public == "" {
		public = InternalServerErrorMsg
	}
	return InternalError{
		public:   &EncodedError{HTTPStatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: public},
		internal: internal,
	}
}

func (e InternalError) Error() string {
	return e.public.Error()
}

func (e InternalError) Unwrap() error {
	return e.internal
}

// Encoded returns the body the client sees.
func (e InternalError) Encoded() *EncodedError {
	return e.public
}

// HandleError maps err to the error returned to the client. Errors nothing here knows
// about become internal errors carrying public as their message.
func HandleError(public string, err error) *EncodedError {
	var encoded *EncodedError
	if errors.As(err, &encoded) {
		return encoded
	}
	var internal InternalError
	if errors.As(err, &internal) {
		return internal.Encoded()
	}

	var compileErr *filter.CompileError
	switch {
	case errors.As(err, &compileErr):
		return &EncodedError{
			HTTPStatusCode: http.StatusBadRequest,
			Code:           string(compileErr.Code),
			Message:        compileErr.Err.Error(),
			Path:           compileErr.Path,
		}
	case errors.Is(err, query.ErrInvalidPagination):
		return &EncodedError{HTTPStatusCode: http.StatusBadRequest, Code: CodeInvalidPagination, Message: err.Error()}
	case errors.Is(err, query.ErrUnknownUniqueKey):
		return &EncodedError{HTTPStatusCode: http.StatusBadRequest, Code: CodeUnknownUniqueKey, Message: err.Error()}
	case errors.Is(err, metadata.ErrInvalidChainID):
		return InvalidRequest("%s", err.Error())
	case errors.Is(err, catalog.ErrUnknownResource):
		return &EncodedError{HTTPStatusCode: http.StatusNotFound, Code: CodeUnknownResource, Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return NotFound
	case errors.Is(err, storage.ErrQueryTimeout):
		return RequestDeadlineExceeded
	case errors.Is(err, storage.ErrCancelled):
		return RequestCancelled
	}
	return NewInternalError(public, err).Encoded()
}
