package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedBody is returned when a 2xx response body is not the expected JSON shape.
	ErrMalformedBody = errors.New("malformed response body")

	// ErrInvalidCredentials is returned by local credential checks before any request is made.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StatusError is a non-2xx response from the remote service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
