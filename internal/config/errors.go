package config

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes for configuration failures.
const (
	ErrCodeNotFound        = "E201" // mirror table file not found
	ErrCodeInvalidTable    = "E202" // CUE syntax or schema violation
	ErrCodeInvalidEndpoint = "E203" // key is not an endpoint path
	ErrCodeInvalidSetting  = "E204" // environment setting out of range
)

// LoadError reports a mirror table or setting that cannot be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ConfigurationError reports a mismatch between the mirror table and the
// live API, or a table entry that cannot be mirrored as written. It is
// raised before any table is created.
type ConfigurationError struct {
	Message   string
	Endpoints []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Endpoints) == 0 {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Message, strings.Join(e.Endpoints, ", "))
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeInvalidTable, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: ErrCodeInvalidTable, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
