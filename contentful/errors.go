package contentful

import (
	"errors"
	"net/http"
	"net/url"
)

// Error is returned by every Client operation. Status is the HTTP status of the
// response, 404 for an unknown slug, or 0 when no response was received.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func apiError(status int) *Error {
	return &Error{Status: status, Message: "Contentful API error: " + http.StatusText(status)}
}

// networkError wraps a transport failure. The *url.Error layer is dropped from
// the message because its URL carries the access token.
func networkError(err error) *Error {
	cause := err
	var uerr *url.Error
	if errors.As(err, &uerr) {
		cause = uerr.Err
	}
	return &Error{Status: 0, Message: "Network error: " + cause.Error(), Err: err}
}

// StatusOf returns the status carried by a *Error in err's chain, or -1.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return -1
}

// IsNotFound reports whether err is a *Error with status 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
