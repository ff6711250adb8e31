package store

import "errors"

var (
	// ErrWorkflowNotFound indicates no indexed workflow matches the given filename.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
