package weatherapi

import "fmt"

// ValidationError is returned when the backend rejects a request with 400.
// Message is meant to be shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ServiceUnavailableError is returned for any other non-200 response
type ServiceUnavailableError struct {
	StatusCode int
	Body       string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("service unavailable: %s", e.Body)
}

// MalformedResponseError is returned when a 200 response does not have the expected shape
type MalformedResponseError struct {
	Path string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Path, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
