package storage

import (
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrQueryTimeout if a statement ran past the configured query timeout.
	ErrQueryTimeout = errors.New("query timed out")

	ErrCancelled = errors.New("request has been cancelled")
)
