package friendships

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the friendship does not exist or is not visible to the caller
	// in the requested context. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("friendship not found")
	// ErrPermissionDenied indicates the caller may not perform the action on the friendship
	// in its current state.
	ErrPermissionDenied = errors.New("friendship action not permitted")
	// ErrDuplicate is returned by stores when a record already exists for the user pair.
	ErrDuplicate = errors.New("friendship already exists for pair")
)

// ValidationError reports bad input for a single request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
