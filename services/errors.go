package services

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateTask   = errors.New("task with this id already exists")
	ErrVersionConflict = errors.New("task was modified by another request")
	ErrInvalidStatus   = errors.New("unknown task status")
)

// SiteNotFoundError reports a base-station site that is missing from the
// objects registry. Task creation aborts on the first missing site.
type SiteNotFoundError struct {
	Name string
}

func (e *SiteNotFoundError) Error() string {
	return fmt.Sprintf("base station %s not found in the objects registry", e.Name)
}

// InvalidTransitionError reports a status change the workflow table does not
// allow for the acting user.
type InvalidTransitionError struct {
	From, To string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("status transition from %q to %q is not allowed", e.From, e.To)
}
