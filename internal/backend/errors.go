package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an invocation failure.
type Kind string

const (
	// KindAuth means credentials were rejected or could not be resolved.
	KindAuth Kind = "auth"

	// KindTransient means a network, quota or timeout failure that may
	// succeed if retried.
	KindTransient Kind = "transient"

	// KindProtocol means the remote answered with something the adapter
	// could not interpret.
	KindProtocol Kind = "protocol"
)

// Error is returned by Adapter.Invoke.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err,
// &Error{Kind: KindAuth}) tests the category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// AuthError creates a KindAuth error.
func AuthError(message string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

// TransientError creates a KindTransient error.
func TransientError(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// ProtocolError creates a KindProtocol error.
func ProtocolError(message string, err error) *Error {
	return &Error{Kind: KindProtocol, Message: message, Err: err}
}

// ErrTimeout is the transient error recorded when a caller deadline expires.
var ErrTimeout = TransientError("timeout", nil)

// KindOf classifies any error into the closed taxonomy.
//
// A *Error anywhere in the chain wins. Context deadline and cancellation
// are transient. Anything else is treated as a protocol failure.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindProtocol
}

// Classify converts err into a *Error, keeping an existing *Error as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientError("timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return TransientError("canceled", err)
	}
	return ProtocolError("unclassified failure", err)
}

// KindForStatus maps an HTTP status code to an error kind.
// Callers only use it for non-2xx responses.
func KindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 408 || code == 429 || code >= 500:
		return KindTransient
	default:
		return KindProtocol
	}
}

// ConfigurationMissingError describes why an adapter is not runnable.
// The harness records it as a skip, never as a failure.
type ConfigurationMissingError struct {
	Identity Identity
	Missing  []string
}

// Error implements the error interface.
func (e *ConfigurationMissingError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s: not configured", e.Identity)
	}
	return fmt.Sprintf("%s: missing %s", e.Identity, strings.Join(e.Missing, ", "))
}
