package restlink

import (
	"fmt"

	"github.com/sorenmh/pushdash/internal/gql"
)

// ErrMissingExport is returned when a nested field references an export its
// parent object did not provide
var ErrMissingExport = gql.ErrMissingExport

// NetworkError is a transport failure where no response was received
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to send request %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is returned for a non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}
