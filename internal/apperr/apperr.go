// Package apperr defines the structured error taxonomy used across the
// notification engine. Every boundary between components returns an
// *Error so callers can branch on Type instead of matching message text.
package apperr

import "fmt"

// Type classifies an error into one of the buckets the processors and
// sender loop need to decide skip/retry/fail behavior (spec §7).
type Type string

const (
	TypeValidation Type = "validation"
	TypeNotFound   Type = "not_found"
	TypeConflict   Type = "conflict"
	TypeTemplate   Type = "template"
	TypeRecipient  Type = "recipient"
	TypeDelivery   Type = "delivery"
	TypeDatabase   Type = "database"
	TypeTelegram   Type = "telegram"
	TypeInternal   Type = "internal"
)

// Error is the engine's structured error type.
type Error struct {
	Type          Type
	Message       string
	Cause         error
	CorrelationID string
	Metadata      map[string]interface{}
	// Retryable marks delivery errors that should be retried by the
	// sender loop rather than marked Failed immediately.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

func Wrap(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// WrapIfErr returns nil when cause is nil, otherwise wraps it. Convenient
// for the rows.Err()-after-the-loop pattern used throughout internal/store.
func WrapIfErr(t Type, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return Wrap(t, message, cause)
}

func (e *Error) WithCorrelationID(id string) *Error {
	e.CorrelationID = id
	return e
}

func (e *Error) WithMetadata(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func NewValidationError(message string, cause error) *Error {
	return Wrap(TypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *Error {
	return Wrap(TypeNotFound, message, cause)
}

func NewConflictError(message string) *Error {
	return New(TypeConflict, message)
}

func NewTemplateError(message string, cause error) *Error {
	return Wrap(TypeTemplate, message, cause)
}

func NewRecipientError(message string, cause error) *Error {
	return Wrap(TypeRecipient, message, cause)
}

func NewDeliveryError(message string, cause error, retryable bool) *Error {
	return Wrap(TypeDelivery, message, cause).WithRetryable(retryable)
}

func NewDatabaseError(message string, cause error) *Error {
	return Wrap(TypeDatabase, message, cause)
}

func NewTelegramError(message string, cause error, retryable bool) *Error {
	return Wrap(TypeTelegram, message, cause).WithRetryable(retryable)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}

// Is reports whether err is an *Error of the given type.
func Is(err error, t Type) bool {
	ae, ok := err.(*Error)
	if !ok {
		return false
	}
	return ae.Type == t
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	ae, ok := err.(*Error)
	return ae, ok
}
