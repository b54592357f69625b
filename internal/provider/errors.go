package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/alienxp03/council/internal/core"
)

// Error represents a failure at the provider boundary.
type Error struct {
	// Provider is the name of the provider that failed.
	Provider string

	// Kind classifies the failure.
	Kind core.ErrorKind

	// Message is a human-readable description.
	Message string

	// Err is the underlying error (if any).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error (%s): %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify extracts the error kind, defaulting to unknown for errors
// that did not originate at the provider boundary.
func Classify(err error) core.ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTimeout
	}
	return core.ErrUnknown
}

// statusError builds an Error from a non-2xx HTTP response.
func statusError(name string, status int, body []byte) *Error {
	kind := core.ErrUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = core.ErrAuth
	case status == http.StatusTooManyRequests:
		kind = core.ErrRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = core.ErrTimeout
	}

	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	return &Error{
		Provider: name,
		Kind:     kind,
		Message:  fmt.Sprintf("status %d: %s", status, msg),
	}
}

// transportError builds an Error from a failed HTTP round trip.
func transportError(name string, err error) *Error {
	kind := core.ErrUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		kind = core.ErrTimeout
	} else {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			kind = core.ErrTimeout
		}
	}
	return &Error{
		Provider: name,
		Kind:     kind,
		Message:  "request failed",
		Err:      err,
	}
}

// malformedError builds an Error for an unparseable or empty response.
func malformedError(name, msg string, err error) *Error {
	return &Error{
		Provider: name,
		Kind:     core.ErrMalformed,
		Message:  msg,
		Err:      err,
	}
}

// missingKeyError reports an unconfigured API key.
func missingKeyError(name string) *Error {
	return &Error{
		Provider: name,
		Kind:     core.ErrAuth,
		Message:  "missing API key",
	}
}
