// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidPath    = errors.New("invalid path")
	ErrBadVersion     = errors.New("invalid version number")
	ErrInvalidCursor  = errors.New("invalid cursor")
	ErrInvalidSection = errors.New("invalid page section")
	// ErrWriteConflict is returned once a save transaction has lost its
	// head CAS more times than the store is allowed to retry.
	ErrWriteConflict = errors.New("write conflict")
	ErrRender        = errors.New("render failed")
)
