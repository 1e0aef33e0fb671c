package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // One or more pairs failed or errored
	ExitCommandError = 2 // Fatal configuration error (bad suite, no backends, etc.)
)

// Error codes carried in JSON error responses.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config file or environment invalid
	ErrCodeSuite       = "E003" // Suite missing or invalid
	ErrCodeBackend     = "E004" // Unknown or missing backend
	ErrCodeStore       = "E005" // Run history unavailable
	ErrCodeFailed      = "E010" // Pairs failed
	ErrCodeDigest      = "E011" // Stored digest does not match results
	ErrCodeExpectation = "E012" // Effective labels differ from expect.labels
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
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// writeJSON encodes a response with indentation.
func writeJSON(w io.Writer, resp CLIResponse) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// writeJSONResult writes data as an ok response, or as an error response
// carrying code and msg when failed is true.
func writeJSONResult(w io.Writer, data any, failed bool, code, msg string) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if failed {
		resp.Status = "error"
		resp.Error = &CLIError{Code: code, Message: msg}
	}
	return writeJSON(w, resp)
}

// WriteError renders err for the user in the given format. JSON errors are
// written to w so scripted callers always get a parsable response.
func WriteError(w io.Writer, format string, err error) {
	code := ErrCodeGeneric
	var coded *codedError
	if errors.As(err, &coded) {
		code = coded.code
	}
	if format == "json" {
		_ = writeJSON(w, CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(w, "Error [%s]: %v\n", code, err)
}

// codedError attaches a response code to an error.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// commandError returns an ExitCommandError tagged with code.
func commandError(code, message string, err error) error {
	var inner error = NewExitError(ExitCommandError, message)
	if err != nil {
		inner = WrapExitError(ExitCommandError, message, err)
	}
	return &codedError{code: code, err: inner}
}

// reportedError marks an error whose response the command already wrote.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already rendered to the user, so the
// caller should only use it for the exit code.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// reported marks err as rendered in JSON output.
func reported(format string, err error) error {
	if format != "json" || err == nil {
		return err
	}
	return &reportedError{err: err}
}
