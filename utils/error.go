package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// Failure kinds for rejected operations. Nothing is retried automatically;
// handlers map a kind to an HTTP status and the caller re-attempts with
// corrected input.
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
	ErrResource      = errors.New("resource error")
	ErrAuthorization = errors.New("authorization error")
)

func Validationf(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrValidation, a)...)
}

func Statef(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrState, a)...)
}

func Resourcef(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrResource, a)...)
}

func Authorizationf(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrAuthorization, a)...)
}

func prepend(err error, a []any) []any {
	return append([]any{err}, a...)
}
