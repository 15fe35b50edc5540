package store

import "errors"

var (
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrBackendUnreachable = errors.New("document store unreachable")
)
