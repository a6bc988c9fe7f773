// Package errors provides custom error types for the call-center client.
//
// This package defines the error taxonomy every backend call is normalized
// into. Screens and commands react to the Kind of a RequestError rather than
// to raw HTTP status codes, and always show the Message verbatim.
//
// Error families:
//   - RequestError: transport and HTTP-level failures (one Kind per case)
//   - LoginFailedError: the backend answered the login call with a falsy status
//   - SessionExpiredError: stored session data is missing or unusable
//   - APIError: a well-formed response that reports failure (status false)
//   - ValidationErrors: field-keyed form messages, detected before any call
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a RequestError.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServerError
	KindHTTPError
	KindNetworkError
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not-found"
	case KindServerError:
		return "server-error"
	case KindHTTPError:
		return "http-error"
	case KindNetworkError:
		return "network-error"
	case KindInvalidResponse:
		return "invalid-response"
	default:
		return "unknown"
	}
}

// Messages shown to the operator. These strings are part of the behavior
// users see and must not be reworded.
const (
	MsgUnauthenticated = "No authentication token found"
	MsgUnauthorized    = "Unauthorized: Invalid credentials"
	MsgForbidden       = "Forbidden: Access denied"
	MsgNotFound        = "Not found: The requested resource was not found"
	MsgServerError     = "Server error: Please try again later"
	MsgNetworkError    = "Network error: Please check your internet connection"
	MsgInvalidResponse = "Invalid response format"
)

// RequestError is returned by the data-access client for every failed call.
//
// Error() returns Message unchanged so it can be displayed directly.
// Status is the HTTP status code when one was received, 0 otherwise.
type RequestError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for error chain inspection
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewUnauthenticatedError is returned when a protected call is attempted
// without a stored token. No network call is made in that case.
func NewUnauthenticatedError() *RequestError {
	return &RequestError{Kind: KindUnauthenticated, Message: MsgUnauthenticated}
}

// NewNetworkError wraps a transport-level failure (DNS, refused connection, TLS).
func NewNetworkError(err error) *RequestError {
	return &RequestError{Kind: KindNetworkError, Message: MsgNetworkError, Err: err}
}

// NewInvalidResponseError is returned for a non-2xx response whose body is
// not valid JSON.
func NewInvalidResponseError(status int, err error) *RequestError {
	return &RequestError{Kind: KindInvalidResponse, Status: status, Message: MsgInvalidResponse, Err: err}
}

// NewStatusError maps an HTTP status code to its RequestError.
//
// Mapping:
//   - 401 → unauthorized
//   - 403 → forbidden
//   - 404 → not-found
//   - 500 → server-error
//   - any other code → generic http-error carrying the code
func NewStatusError(status int) *RequestError {
	switch status {
	case 401:
		return &RequestError{Kind: KindUnauthorized, Status: status, Message: MsgUnauthorized}
	case 403:
		return &RequestError{Kind: KindForbidden, Status: status, Message: MsgForbidden}
	case 404:
		return &RequestError{Kind: KindNotFound, Status: status, Message: MsgNotFound}
	case 500:
		return &RequestError{Kind: KindServerError, Status: status, Message: MsgServerError}
	default:
		return &RequestError{Kind: KindHTTPError, Status: status, Message: fmt.Sprintf("HTTP error! status: %d", status)}
	}
}

// KindOf returns the Kind of the first RequestError in err's chain.
func KindOf(err error) Kind {
	var reqErr *RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsUnauthenticated reports whether err means no token was available.
func IsUnauthenticated(err error) bool {
	return KindOf(err) == KindUnauthenticated
}

// IsNetwork reports whether err is a connectivity failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetworkError
}

// StatusOf returns the HTTP status carried by the first RequestError in
// err's chain, or 0.
func StatusOf(err error) int {
	var reqErr *RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

// NeedsLogin reports whether the caller should obtain a new session before
// retrying. A 401 whose body was not JSON counts too, even though its
// message is the invalid-response one. Deciding to log out or log in again
// is left to the caller.
func NeedsLogin(err error) bool {
	return IsUnauthorized(err) || IsUnauthenticated(err) || IsSessionExpired(err) ||
		StatusOf(err) == 401
}

// SessionExpiredError indicates that the stored session cannot be trusted.
//
// This error is returned when:
//   - No token or no user data is stored
//   - The stored user data cannot be parsed
//
// Recovery strategy: Log in again
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %s", e.Message)
}

// NewSessionExpiredError creates a new session expired error with context
func NewSessionExpiredError(msg string) *SessionExpiredError {
	return &SessionExpiredError{Message: msg}
}

// LoginFailedError indicates that a login attempt was rejected.
//
// Message is the backend's message when it sent one.
type LoginFailedError struct {
	Message string
	Err     error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("login failed: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// NewLoginFailedError creates a new login failed error with context
func NewLoginFailedError(msg string, err error) *LoginFailedError {
	return &LoginFailedError{Message: msg, Err: err}
}

// APIError is a response that decoded fine but reported failure.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates an APIError, substituting fallback when the backend
// sent no message.
func NewAPIError(op, msg, fallback string) *APIError {
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	return &APIError{Op: op, Message: msg}
}

// IsLoginFailed checks if the error is a login failure error
func IsLoginFailed(err error) bool {
	var e *LoginFailedError
	return stderrors.As(err, &e)
}

// IsSessionExpired checks if the error is a session expired error
func IsSessionExpired(err error) bool {
	var e *SessionExpiredError
	return stderrors.As(err, &e)
}

// IsAPIError checks if the error is an APIError
func IsAPIError(err error) bool {
	var e *APIError
	return stderrors.As(err, &e)
}

// ValidationErrors maps a form field to the message shown next to it.
//
// Validators return it as a value; an empty map means the form is valid.
type ValidationErrors map[string]string

// Error joins the messages in field order so the output is stable.
func (v ValidationErrors) Error() string {
	fields := v.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, v[f])
	}
	return strings.Join(parts, " ")
}

// Fields returns the invalid field names, sorted.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Merge copies other into v.
func (v ValidationErrors) Merge(other ValidationErrors) {
	for k, msg := range other {
		v[k] = msg
	}
}

// Err returns nil when there are no messages, v otherwise.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
