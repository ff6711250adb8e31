package storage

import "errors"

// Standard storage error types returned by path resolution.
var (
	// ErrNotFound indicates no category subdirectory holds the requested file.
	ErrNotFound = errors.New("workflow file not found")

	// ErrForbidden indicates a candidate file resolved outside the storage
	// root. Callers must surface this distinctly from ErrNotFound: only a
	// containment failure warrants a security audit log entry.
	ErrForbidden = errors.New("workflow file outside storage root")
)

// IsNotFound checks if an error indicates a missing workflow file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if an error indicates a containment violation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
