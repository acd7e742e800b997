package comment

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors surfaced to clients. Each maps to one 4xx status at the
// HTTP boundary; anything else is an internal error.
var (
	// ErrRecordInvalid indicates input failed validation. No statement has
	// been executed when this is returned.
	ErrRecordInvalid = errors.New("comment: record invalid")

	// ErrRecordNotFound indicates the target is absent or hidden by the
	// active filter predicates.
	ErrRecordNotFound = errors.New("comment: record not found")

	// ErrIdentityRequired indicates a non-exempt operation ran without a
	// resolved identity.
	ErrIdentityRequired = errors.New("comment: identity required")

	// ErrForbidden indicates the caller does not own the target comment.
	ErrForbidden = errors.New("comment: forbidden")

	// ErrRateLimited indicates the caller posted too often.
	ErrRateLimited = errors.New("comment: rate limited")
)

// Invalid returns an ErrRecordInvalid carrying a client-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRecordInvalid, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrRecordNotFound naming the missing record.
func NotFound(kind string, key any) error {
	return fmt.Errorf("%w: %s %v", ErrRecordNotFound, kind, key)
}

// Status returns the HTTP status an operation error maps to at the boundary.
// The narrower sentinels are checked first, so an error wrapping both
// ErrRecordInvalid and ErrRateLimited is a 429.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrIdentityRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRecordInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err carries one of the client sentinels.
func IsClientError(err error) bool {
	for _, target := range []error{ErrRecordInvalid, ErrRecordNotFound, ErrIdentityRequired, ErrForbidden, ErrRateLimited} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
