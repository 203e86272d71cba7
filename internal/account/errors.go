package account

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrImmutableField     = errors.New("field cannot be changed")
	ErrEmptyUpdate        = errors.New("update contains no mutable field")
	ErrStoreUnavailable   = errors.New("account store unavailable")
)

// ValidationError reports a client payload that failed validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
