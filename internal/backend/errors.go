package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse marks a 2xx response whose body does not match the contract.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPStatusError captures non-2xx responses from the service.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d %s from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
	}
	return fmt.Sprintf("backend returned %d %s from %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL, e.Body)
}

// ResponseTooLargeError is returned when a 2xx body exceeds the client's limit.
// The body was not inspected, so it is not reported as malformed.
type ResponseTooLargeError struct {
	Limit int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response exceeds %d bytes", e.Limit)
}

// IsNotFound reports whether err is a 404 from the service
func IsNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
