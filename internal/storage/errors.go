package storage

import "errors"

// Storage errors for run artefact stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a record with the same key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record is missing its key fields.
	ErrInvalidInput = errors.New("invalid input")
)
