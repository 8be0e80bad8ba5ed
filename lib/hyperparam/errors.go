package hyperparam

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWrongType   = errors.New("wrong type")
	ErrOutOfRange  = errors.New("out of range")
	ErrNotInSet    = errors.New("not one of the allowed values")
	ErrUnsupported = errors.New("unsupported hyperparameter")
	ErrInvalid     = errors.New("invalid value")
)

// ValidationError reports a single hyperparameter assignment that was
// rejected. Err is one of the sentinel errors above.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("hyperparameter %s=%v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("hyperparameter %s=%v: %v, must be %s", e.Field, e.Value, e.Err, e.Constraint)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MissingFieldError is returned by Serialize when required hyperparameters
// were never set.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required hyperparameters: %s", strings.Join(e.Fields, ", "))
}

// constraintError is what checkers return; Spec.Validate turns it into a
// ValidationError carrying the field name.
type constraintError struct {
	kind       error
	constraint string
}

func (e constraintError) Error() string {
	return fmt.Sprintf("%v, must be %s", e.kind, e.constraint)
}

func (e constraintError) Unwrap() error {
	return e.kind
}

func newValidationError(field string, value interface{}, err error) *ValidationError {
	var ce constraintError
	if errors.As(err, &ce) {
		return &ValidationError{Field: field, Value: value, Constraint: ce.constraint, Err: ce.kind}
	}
	return &ValidationError{Field: field, Value: value, Constraint: err.Error(), Err: ErrInvalid}
}
