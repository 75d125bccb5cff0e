// Package rcerrors defines the structured error taxonomy shared by every
// component on the request path: classifier, load balancer, pipeline,
// provider and OAuth lifecycle.
package rcerrors

import (
	"errors"
	"fmt"
)

// Type is the coarse error taxonomy from the error handling design.
type Type string

const (
	TypeNetwork Type = "network"
	TypeTimeout Type = "timeout"
	TypeServer  Type = "server"
	TypeAuth    Type = "auth"
	TypeConfig  Type = "config"
	TypeSandbox Type = "sandbox"
	TypeUnknown Type = "unknown"
)

// VendorReport carries a parsed, human-readable hint for a known upstream
// business error code (e.g. GLM 1210/1213/1302/1303/1113).
type VendorReport struct {
	Code string `json:"code"`
	Hint string `json:"hint"`
}

// ProviderDetails identifies which upstream produced an error.
type ProviderDetails struct {
	Vendor     string `json:"vendor"`
	BaseURL    string `json:"baseUrl,omitempty"`
	ModuleType string `json:"moduleType,omitempty"`
}

// Details is the structured payload attached to every surfaced error.
type Details struct {
	Upstream string          `json:"upstream,omitempty"`
	Provider ProviderDetails `json:"provider"`
	Report   *VendorReport   `json:"report,omitempty"`
}

// Error is the single error type returned across the gateway's request
// path. It always carries a taxonomy Type plus a retryability verdict so
// callers never need to sniff status codes a second time.
type Error struct {
	Type       Type    `json:"type"`
	Message    string  `json:"message"`
	Code       string  `json:"code,omitempty"`
	HTTPStatus int     `json:"statusCode,omitempty"`
	Retryable  bool    `json:"retryable"`
	Details    Details `json:"details,omitempty"`
	Cause      error   `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a minimal Error of the given type.
func New(t Type, code, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// WithStatus fills the HTTP status and derives the standard retryability
// rule for it ("status >= 500 OR status == 429") unless already set.
func (e *Error) WithStatus(status int) *Error {
	e.HTTPStatus = status
	if status >= 500 || status == 429 {
		e.Retryable = true
	}
	return e
}

func (e *Error) WithRetryable(r bool) *Error { e.Retryable = r; return e }
func (e *Error) WithCause(err error) *Error  { e.Cause = err; return e }
func (e *Error) WithProvider(p ProviderDetails) *Error {
	e.Details.Provider = p
	return e
}
func (e *Error) WithUpstream(body string) *Error { e.Details.Upstream = body; return e }
func (e *Error) WithReport(r VendorReport) *Error {
	e.Details.Report = &r
	return e
}

// HTTPCode maps a taxonomy Type + HTTP status into the classic
// "HTTP_<n>" wire code used in snapshots and error envelopes.
func HTTPCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// FromStatus classifies a raw upstream HTTP status into an Error,
// applying the retryable = status>=500 || status==429 rule and the
// abort/timeout/sandbox special cases from the propagation policy.
func FromStatus(status int, message, provider string) *Error {
	t := TypeServer
	switch {
	case status == 401 || status == 403:
		t = TypeAuth
	case status == 408:
		t = TypeTimeout
	case status == 429 || status >= 500:
		t = TypeServer
	case status >= 400:
		t = TypeServer
	}
	e := &Error{
		Type:    t,
		Message: message,
		Code:    HTTPCode(status),
	}
	e.WithStatus(status)
	e.Details.Provider.Vendor = provider
	return e
}

// Timeout builds the canonical abort/deadline error (504, non-retryable
// per the literal request, retried instead at the caller's retry policy).
func Timeout(provider string) *Error {
	return &Error{
		Type:       TypeTimeout,
		Message:    "request timed out",
		Code:       "TIMEOUT",
		HTTPStatus: 504,
		Retryable:  true,
		Details:    Details{Provider: ProviderDetails{Vendor: provider}},
	}
}

// Sandbox builds the network/sandbox error emitted for socket-level
// failures (ECONNREFUSED, ENOTFOUND, "fetch failed", ...).
func Sandbox(provider string, cause error) *Error {
	return &Error{
		Type:       TypeSandbox,
		Message:    "outbound network access unavailable; grant the sandbox egress to the provider host",
		Code:       "SANDBOX_NETWORK",
		HTTPStatus: 503,
		Retryable:  false,
		Details:    Details{Provider: ProviderDetails{Vendor: provider}},
		Cause:      cause,
	}
}

// IsRetryable reports whether err (or anything it wraps) is retryable.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// As extracts an *Error from err, unwrapping through fmt.Errorf("%w", ...)
// chains the same way errors.As does.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
