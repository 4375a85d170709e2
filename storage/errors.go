package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned by storage operations for missing keys, in place
	// of badger.ErrKeyNotFound.
	ErrNotFound = errors.New("key not found")

	ErrAlreadyExists = errors.New("key already exists")
)
