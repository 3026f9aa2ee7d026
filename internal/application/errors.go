package application

import "errors"

var (
	// ErrClosedDate is returned when the requested date is on the blackout calendar.
	ErrClosedDate = errors.New("application: date closed for booking")
	// ErrSlotFull is returned when the pool for the requested slot has no seat left.
	ErrSlotFull = errors.New("application: slot full")
	// ErrServiceUnavailable wraps failures and timeouts of external stores.
	ErrServiceUnavailable = errors.New("application: service unavailable")
	// ErrPaymentFailed is returned when the payment provider refuses or fails to create an intent.
	ErrPaymentFailed = errors.New("application: payment failed")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when creating a resource that is already present.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
