package cli

import (
	"errors"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/roach88/dtmirror/internal/apipath"
	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/mirror"
	"github.com/roach88/dtmirror/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Mirror failure (configuration, transport, schema inference)
	ExitCommandError = 2 // Usage error (bad flags, refusing to overwrite, etc.)
)

// Error codes reported in CLI output. Mirror table and settings errors keep
// the E20x code they were raised with.
const (
	ErrCodeGeneric       = "E200"
	ErrCodeTransport     = "E210"
	ErrCodeConfiguration = "E211"
	ErrCodeInference     = "E212"
	ErrCodeResourcePath  = "E213"
	ErrCodeUsage         = "E220"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode maps a failure to its stable output code.
func ErrorCode(err error) string {
	var le *config.LoadError
	switch {
	case errors.As(err, &le):
		return le.Code
	case config.IsConfigurationError(err):
		return ErrCodeConfiguration
	case datatracker.IsTransportError(err):
		return ErrCodeTransport
	case schema.IsInferenceError(err):
		return ErrCodeInference
	case apipath.IsParseError(err):
		return ErrCodeResourcePath
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E210", "E211", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// errorDetails is the context attached to a failed run.
type errorDetails struct {
	Phase     mirror.Phase `json:"phase,omitempty"`
	Endpoints []string     `json:"endpoints,omitempty"`
	Status    int          `json:"status,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %+v\n", details)
	}
	return nil
}

// Fail reports a mirror failure and returns the matching exit error.
func (f *OutputFormatter) Fail(message string, err error) error {
	details := &errorDetails{Phase: mirror.FailedPhase(err)}
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		details.Endpoints = ce.Endpoints
	}
	var te *datatracker.TransportError
	if errors.As(err, &te) {
		details.Status = te.Status
	}

	_ = f.Error(ErrorCode(err), err.Error(), details)
	return WrapExitError(ExitFailure, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := gojson.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
