package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Receipt stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStatusConflict is returned when a compare-and-set finds a different current value.
	ErrStatusConflict = errors.New("status conflict")

	// ErrTokenAlreadySet is returned when the launch token is assigned twice.
	ErrTokenAlreadySet = errors.New("token already set")
)
