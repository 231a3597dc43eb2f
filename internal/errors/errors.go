// Package errors defines the error taxonomy shared by the storefront packages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = stderrors.New("not found")

// ValidationError reports buyer input that cannot be applied to the order.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvoiceError means the payment processor rejected the invoice request or
// answered without a payable URL.
type InvoiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *InvoiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invoice creation failed: %v", e.Err)
	}
	return fmt.Sprintf("invoice creation failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *InvoiceError) Unwrap() error {
	return e.Err
}

// LedgerError means a ledger append did not complete. The order it belongs
// to has not been committed.
type LedgerError struct {
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger append failed: %v", e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return stderrors.As(err, &v)
}

func IsInvoice(err error) bool {
	var v *InvoiceError
	return stderrors.As(err, &v)
}

func IsLedger(err error) bool {
	var v *LedgerError
	return stderrors.As(err, &v)
}
