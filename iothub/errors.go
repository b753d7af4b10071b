package iothub

import (
	"fmt"
	"net/http"
)

// ConfigurationError reports a credential that can never produce a valid
// token, such as an access key that is not base64. It is never retried.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("iothub: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError is returned when the request never produced an HTTP
// response: DNS, dial, TLS or a cancelled context.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("iothub: post %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is an HTTP response other than 204 No Content.
// Body is the raw response text as returned by the hub.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("iothub: rejected with %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}
