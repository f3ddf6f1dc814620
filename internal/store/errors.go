package store

import "errors"

var (
	// ErrNotFound marks lookups for records that do not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrEmptyTitle rejects alias titles that normalize to nothing.
	ErrEmptyTitle = errors.New("store: title normalizes to empty key")
	// ErrInvalidEmail rejects allow-list entries that are not addresses.
	ErrInvalidEmail = errors.New("store: invalid email")
)
