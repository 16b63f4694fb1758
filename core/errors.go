package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries the field errors of a rejected input; Err is the cause.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ShutdownError marks a failure after which the process must stop serving requests.
type ShutdownError struct {
	Err error
}

func NewShutdownError(err error) error {
	return &ShutdownError{Err: err}
}

func (err *ShutdownError) Error() string {
	return "shutdown: " + err.Err.Error()
}

func (err *ShutdownError) Unwrap() error { return err.Err }

// IsShutdown reports whether a ShutdownError is anywhere in err's chain.
func IsShutdown(err error) bool {
	var se *ShutdownError
	return errors.As(err, &se)
}
