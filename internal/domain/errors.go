// Package domain defines the error kinds shared by the catalog, draft and
// ledger packages.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when an operation requires the catalog edit
	// capability and the caller does not hold it.
	ErrForbidden = errors.New("catalog edit capability required")
	// ErrEmptyDraft is returned when an order is placed with nothing to fulfil.
	ErrEmptyDraft = errors.New("draft order has no available items")
)

// ValidationError is returned when input fails a domain rule. The operation
// is rejected and state is left unchanged. Err, when set, is the package
// sentinel for the broken rule.
type ValidationError struct {
	Field  string
	Reason string
	Value  interface{}
	Err    error
}

// Error implements the error interface for ValidationError
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field=%s, reason=%s, value=%v", e.Field, e.Reason, e.Value)
}

// Is allows proper error type checking with errors.Is()
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// Unwrap exposes the sentinel so errors.Is matches the specific rule.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when an operation references an unknown product
// or order id.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error implements the error interface for NotFoundError
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: id=%s", e.Kind, e.ID)
}

// Is allows proper error type checking with errors.Is()
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ExternalServiceError wraps a failure of a collaborator outside the engine
// (state store, event stream, summarization service).
type ExternalServiceError struct {
	Service string
	Err     error
}

// Error implements the error interface for ExternalServiceError
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Is allows proper error type checking with errors.Is()
func (e *ExternalServiceError) Is(target error) bool {
	_, ok := target.(*ExternalServiceError)
	return ok
}

// NewRuleError builds a ValidationError whose reason is the sentinel err.
func NewRuleError(field string, err error, value interface{}) error {
	return &ValidationError{Field: field, Reason: err.Error(), Value: value, Err: err}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, reason string, value interface{}) error {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// NewExternalServiceError creates a new ExternalServiceError
func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsExternalServiceError checks if an error is an ExternalServiceError
func IsExternalServiceError(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}
