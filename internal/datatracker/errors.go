package datatracker

import (
	"errors"
	"fmt"
)

// TransportError reports a failed request: a non-2xx response, a network
// failure, or a body that is not valid JSON. The mirror never retries.
type TransportError struct {
	URI    string
	Status int   // HTTP status, zero when no response was received
	Err    error // underlying failure, nil for status errors
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URI, e.Status)
	}
	return fmt.Sprintf("GET %s: %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
