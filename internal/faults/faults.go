package faults

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultBodyLimit defines the maximum number of characters retained from a
// remote diagnostic body when attaching it to an error.
const DefaultBodyLimit = 2048

// Sentinel errors classifying every failure the notification pipeline can
// produce. Callers use errors.Is to distinguish them; none of them are
// recovered locally.
var (
	// ErrCredential marks failures of the secret store or identity provider.
	ErrCredential = errors.New("credential error")
	// ErrScopeMismatch marks a token whose audience does not match the API
	// being called, including remote 401/403 despite correct role assignment.
	ErrScopeMismatch = errors.New("scope mismatch")
	// ErrTransport marks network and timeout failures.
	ErrTransport = errors.New("transport error")
	// ErrRejected marks a 4xx/5xx response to a structurally valid request.
	ErrRejected = errors.New("request rejected")
)

// WrapCredential annotates an error as a credential failure.
func WrapCredential(err error) error {
	if err == nil {
		return ErrCredential
	}
	return fmt.Errorf("%w: %v", ErrCredential, err)
}

// WrapScopeMismatch annotates an error as an audience/scope mismatch.
func WrapScopeMismatch(err error) error {
	if err == nil {
		return ErrScopeMismatch
	}
	return fmt.Errorf("%w: %v", ErrScopeMismatch, err)
}

// WrapTransport annotates an error as a transport failure.
func WrapTransport(err error) error {
	if err == nil {
		return ErrTransport
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// WrapRejected annotates an error as an application-level rejection.
func WrapRejected(err error) error {
	if err == nil {
		return ErrRejected
	}
	return fmt.Errorf("%w: %v", ErrRejected, err)
}

// StatusError carries the remote status code and diagnostic body verbatim so
// operators can tell scope mismatches from genuine permission problems. The
// body is never interpreted, only truncated.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// NewStatusError builds a StatusError, trimming the body to DefaultBodyLimit.
func NewStatusError(code int, body string) *StatusError {
	return &StatusError{Code: code, Body: TruncateBody(body, DefaultBodyLimit)}
}

// TruncateBody trims the supplied string to the specified rune limit. If limit
// is zero or negative it returns an empty string.
func TruncateBody(body string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	return string([]rune(body)[:limit])
}
