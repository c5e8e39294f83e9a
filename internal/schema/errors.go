package schema

import (
	"errors"
	"fmt"
)

// InferenceError reports a field whose type cannot be mapped.
type InferenceError struct {
	Endpoint string
	Column   string
	Message  string
}

func (e *InferenceError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema inference failed for %s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("schema inference failed for %s field %s: %s", e.Endpoint, e.Column, e.Message)
}

// IsInferenceError returns true if err is or wraps an InferenceError.
func IsInferenceError(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}
