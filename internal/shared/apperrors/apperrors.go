package apperrors

import (
	"errors"
	"net/http"
)

// Expected, recoverable-by-caller conditions. Handlers surface these as
// typed HTTP failures; anything else is an internal storage fault.
var (
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrNoActiveSession     = errors.New("no active tracking session")
	ErrSessionAlreadyEnded = errors.New("tracking session already ended for today")
	ErrInvalidState        = errors.New("invalid session state")
	ErrVisitNotFound       = errors.New("visit not found")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
)

var domainErrors = []error{
	ErrInvalidCoordinates,
	ErrRateLimited,
	ErrNoActiveSession,
	ErrSessionAlreadyEnded,
	ErrInvalidState,
	ErrVisitNotFound,
	ErrForbidden,
	ErrNotFound,
}

// IsDomain reports whether err belongs to the expected error taxonomy,
// as opposed to an internal storage failure.
func IsDomain(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

// HTTPStatus maps a taxonomy error to its response status. Unknown errors
// are internal failures.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCoordinates):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNoActiveSession),
		errors.Is(err, ErrSessionAlreadyEnded),
		errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrVisitNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RetryOnce runs fn, retrying a single time when it fails with a non-domain
// error. Storage hiccups get one more chance at the boundary; taxonomy
// errors are returned as-is.
func RetryOnce(fn func() error) error {
	err := fn()
	if err == nil || IsDomain(err) {
		return err
	}
	return fn()
}
