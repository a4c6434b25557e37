// Package apierror maps the error taxonomy of spec section 7 onto HTTP status codes,
// so handlers can return a plain error and let the echo error handler do the rest.
package apierror

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind is one of the error categories from spec section 7.
type Kind string

// The error kinds recognized by both services. Gateway failures (NotFound,
// CapabilityInvalid, StoreFailure on the attach path) never reach an HTTP response;
// the gateway maps them to a silently destroyed connection instead.
const (
	KindAuthMissing        Kind = "auth_missing"
	KindAuthInvalid        Kind = "auth_invalid"
	KindForbidden          Kind = "forbidden"
	KindValidation         Kind = "validation"
	KindRateLimited        Kind = "rate_limited"
	KindNotFound           Kind = "not_found"
	KindOrchestratorFailed Kind = "orchestrator_failure"
	KindDiscoveryTimeout   Kind = "discovery_timeout"
	KindStoreFailure       Kind = "store_failure"
	KindCapabilityInvalid  Kind = "capability_invalid"
	KindInternal           Kind = "internal"
)

// Error is a categorized error with a short, client-safe reason. The wrapped cause
// (if any) is logged but never sent to the client.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Reason + ": " + e.cause.Error()
	}
	return e.Reason
}

// Unwrap exposes the underlying cause so errors.Is/As and pkg/errors.Cause keep working.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a categorized error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds a categorized error that wraps cause for logging, while reason stays
// the only thing ever shown to a client.
func Wrap(kind Kind, cause error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, cause: cause}
}

// As extracts an *Error from err's chain, matching the teacher's use of
// errors.Cause/errors.As to look through wrapped error chains.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the HTTP status spec section 7 assigns to kind.
func StatusCode(kind Kind) int {
	switch kind {
	case KindAuthMissing, KindAuthInvalid:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindOrchestratorFailed, KindDiscoveryTimeout, KindStoreFailure, KindInternal:
		return http.StatusInternalServerError
	case KindCapabilityInvalid:
		// No Controller handler returns this kind (a mint failure is
		// KindInternal), and the gateway never turns it into an HTTP response.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
