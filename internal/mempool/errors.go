package mempool

import (
	"fmt"
	"net/http"
)

// TransportError is returned when the ranking endpoint cannot be reached or
// answers with a non-success status.
type TransportError struct {
	URL string
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mempool transport: %s returned status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("mempool transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether repeating the request may succeed.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// DecodeError is returned when the response body is not a JSON array of nodes
// or a node lacks a required field.
type DecodeError struct {
	// Index of the offending node, or -1 when the body as a whole is malformed.
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("mempool decode: node %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("mempool decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
