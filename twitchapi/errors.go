package twitchapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Twitch API. Status and Body carry
// the upstream status code and response text so callers can log or classify
// the failure without losing information.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api: status %d: %s", e.Status, e.Body)
}

// IsAuth reports whether the error indicates rejected credentials.
func (e *APIError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// TransportError is a connection-level failure (DNS, timeout, reset) before a
// usable HTTP response was obtained. Always transient.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("twitch api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an API error caused by bad credentials.
// Persistent auth failures should escalate rather than be retried forever.
func IsAuthError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.IsAuth()
}

// IsTransient reports whether err is worth retrying on a later poll.
// Transport errors always are; API errors are unless they indicate bad
// credentials or a permanently invalid request.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		switch {
		case ae.IsAuth():
			return false
		case ae.Status == http.StatusBadRequest || ae.Status == http.StatusNotFound:
			return false
		default:
			// 429 and 5xx resolve themselves; unknown statuses are retried
			// on the next poll anyway, so treat them the same.
			return true
		}
	}
	return false
}
