// Package apperr defines the error kinds shared across the storage, index
// and gallery layers. Callers branch on kind with errors.Is; the kinds map
// onto HTTP statuses at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks logical absence of a blob, index record or folder.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a destination that already exists (move).
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable marks a transport or auth failure of the object
	// store. Never swallowed.
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrIndexUnavailable marks a transport or auth failure of the metadata
	// index. Downgraded to a warning on dual-write paths, surfaced as 503 on
	// metadata-only endpoints.
	ErrIndexUnavailable = errors.New("metadata index unavailable")

	// ErrInvalidArgument marks malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

func StoreUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func IndexUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
}

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}
