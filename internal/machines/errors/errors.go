package errors

import "errors"

var (
	ErrNotFound = errors.New("machine not found")
)
