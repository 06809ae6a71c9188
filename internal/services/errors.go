package services

import (
	"errors"
	"fmt"
)

// CollaboratorError marks a failure of an external collaborator (directory, catalog, order backend).
// The engine turns it into the technical-difficulty reply and leaves the session unchanged.
type CollaboratorError struct {
	Op            string
	CorrelationID string
	Err           error
}

func (e *CollaboratorError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.CorrelationID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func collaboratorFault(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}

// IsCollaboratorFault reports whether err came from an external collaborator
func IsCollaboratorFault(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
