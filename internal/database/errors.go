package database

// Sentinel errors returned by repositories. Services translate these into
// API-facing error kinds.

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrStaleStatus is returned when a guarded status update matched no
	// row, meaning the row is gone or its status changed underneath us
	ErrStaleStatus = errors.New("status changed concurrently")
)

// scanner interface for QueryRow and Rows
type scanner interface {
	Scan(dest ...interface{}) error
}
