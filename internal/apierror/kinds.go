package apierror

import (
	"errors"
	"net/http"
)

// Kind classifies a failure. The set is closed.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindInvalidAmount          Kind = "invalid_amount"
	KindInsufficientPoints     Kind = "insufficient_points"
	KindMalformedPayload       Kind = "malformed_payload"
	KindInvalidOrExpiredCode   Kind = "invalid_or_expired_code"
	KindUnauthenticated        Kind = "unauthenticated"
	KindForbidden              Kind = "forbidden"
	KindConcurrentModification Kind = "concurrent_modification"
	KindInternal               Kind = "internal"
)

// Error is a classified error with a message that is safe to show to users.
// Err, when set, holds the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can compare against the
// sentinels below regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel errors, one per kind.
var (
	ErrNotFound               = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidAmount          = &Error{Kind: KindInvalidAmount, Message: "amount must be a positive integer"}
	ErrInsufficientPoints     = &Error{Kind: KindInsufficientPoints, Message: "insufficient points"}
	ErrMalformedPayload       = &Error{Kind: KindMalformedPayload, Message: "malformed QR payload"}
	ErrInvalidOrExpiredCode   = &Error{Kind: KindInvalidOrExpiredCode, Message: "QR code is invalid or expired"}
	ErrUnauthenticated        = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden              = &Error{Kind: KindForbidden, Message: "insufficient permissions"}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification, Message: "balance changed concurrently, retry"}
	ErrInternal               = &Error{Kind: KindInternal, Message: "internal server error"}
)

// Wrap classifies cause under kind with a custom user-facing message.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// NotFound returns a NotFound error naming the missing entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Internal hides cause behind the generic internal message.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-safe message for err. Unclassified errors never
// leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return ErrInternal.Message
}

// IsRetryable returns true only for optimistic-lock conflicts; every other
// kind is terminal for the current request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// HTTPStatus maps a kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidAmount, KindInvalidOrExpiredCode:
		return http.StatusUnprocessableEntity
	case KindInsufficientPoints:
		return http.StatusPaymentRequired
	case KindMalformedPayload:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConcurrentModification:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
