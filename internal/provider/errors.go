// Package provider defines the error taxonomy shared by the external
// collaborators (catalog, release index, cache service).
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Error codes for categorizing collaborator errors
const (
	ErrCodeAuthentication = "AUTH_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_ERROR"
	ErrCodeTimeout        = "TIMEOUT_ERROR"
	ErrCodeBlocked        = "BLOCKED_ERROR"
	ErrCodeNetwork        = "NETWORK_ERROR"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodeParse          = "PARSE_ERROR"
)

// Error represents a categorized failure from a collaborator call.
type Error struct {
	Code       string // Error category code
	Provider   string // "trakt", "torrentio", "realdebrid"
	Op         string // Operation that failed, e.g. "instantAvailability"
	Message    string
	StatusCode int  // HTTP status, 0 when the request never completed
	Retryable  bool // Transient failures may be retried with backoff
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[" + e.Code + "]")
	if e.Provider != "" {
		b.WriteString(" " + e.Provider)
		if e.Op != "" {
			b.WriteString(" " + e.Op)
		}
		b.WriteString(":")
	}
	b.WriteString(" " + e.Message)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by category code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuth      = &Error{Code: ErrCodeAuthentication, Message: "authentication failed"}
	ErrRateLimit = &Error{Code: ErrCodeRateLimit, Message: "rate limit exceeded"}
	ErrTimeout   = &Error{Code: ErrCodeTimeout, Message: "request timed out"}
	ErrBlocked   = &Error{Code: ErrCodeBlocked, Message: "access denied"}
	ErrNetwork   = &Error{Code: ErrCodeNetwork, Message: "network error"}
	ErrUpstream  = &Error{Code: ErrCodeUpstream, Message: "upstream error"}
	ErrParse     = &Error{Code: ErrCodeParse, Message: "parse error"}
)

// NewAuthError creates an error for a missing or rejected credential.
func NewAuthError(provider, op, message string) *Error {
	return &Error{
		Code:     ErrCodeAuthentication,
		Provider: provider,
		Op:       op,
		Message:  message,
	}
}

// NewParseError creates an error for an undecodable response.
func NewParseError(provider, op string, cause error) *Error {
	return &Error{
		Code:     ErrCodeParse,
		Provider: provider,
		Op:       op,
		Message:  "decode response",
		Cause:    cause,
	}
}

// FromStatus maps a non-success HTTP status to a categorized error.
// body is included in the message, truncated.
func FromStatus(provider, op string, status int, body string) *Error {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		body = body[:256]
	}
	e := &Error{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Message:    body,
	}
	switch {
	case status == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case status == http.StatusUnauthorized:
		e.Code = ErrCodeAuthentication
	case status == http.StatusForbidden:
		e.Code = ErrCodeBlocked
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Code = ErrCodeTimeout
		e.Retryable = true
	case status >= 500:
		e.Code = ErrCodeUpstream
	default:
		e.Code = ErrCodeUpstream
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// FromTransport categorizes an error returned by http.Client.Do.
func FromTransport(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{
			Code:      ErrCodeTimeout,
			Provider:  provider,
			Op:        op,
			Message:   "request timed out",
			Retryable: true,
			Cause:     err,
		}
	}
	return &Error{
		Code:     ErrCodeNetwork,
		Provider: provider,
		Op:       op,
		Message:  "request failed",
		Cause:    err,
	}
}

// IsTransient reports whether err is a rate-limit or timeout failure,
// the only categories retried with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}

// IsBlocked reports whether err is a persistent access-denied failure.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
