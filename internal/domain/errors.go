package domain

import "fmt"

// ValidationError is a client mistake detected before any write: missing
// fields, an empty cart, or insufficient stock. The message is safe to show
// to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock names the offending product, matching the message the
// storefront displays.
func InsufficientStock(productName string) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf("Insufficient stock for %s", productName)}
}

// NotFoundError covers both a missing resource and a resource owned by a
// different user; the two are indistinguishable to the caller.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func NotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// InvalidStateError rejects an operation that the order's current status
// forbids, such as cancelling a shipped order.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

func InvalidState(message string) *InvalidStateError {
	return &InvalidStateError{Message: message}
}
