package transport

import (
	"errors"
	"fmt"
)

// NetworkError means the request never reached the endpoint or no status line came back:
// DNS, TLS, refused or reset connections, cancellation and deadlines all end up here.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError means the endpoint answered with a status outside 200-299.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// IsNetworkError reports whether err (or anything it wraps) is a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsHTTPStatusError reports whether err (or anything it wraps) is a *HTTPStatusError.
func IsHTTPStatusError(err error) bool {
	var he *HTTPStatusError
	return errors.As(err, &he)
}
