package loom

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a capability failure into the taxonomy shared by all
// providers. Codes, not provider-specific types, are what callers branch on
// and what the oplog records.
type ErrorCode string

const (
	// AuthenticationFailed covers missing or rejected credentials
	// (HTTP 401/403/402, or an absent environment key).
	AuthenticationFailed ErrorCode = "authentication-failed"

	// RateLimitExceeded corresponds to HTTP 429.
	RateLimitExceeded ErrorCode = "rate-limit-exceeded"

	// InvalidRequest covers 4xx responses other than the above.
	InvalidRequest ErrorCode = "invalid-request"

	// ModelNotFound is the provider-specific model-missing signal.
	ModelNotFound ErrorCode = "model-not-found"

	// Unsupported means the capability is not available on this provider.
	Unsupported ErrorCode = "unsupported"

	// InternalError covers 5xx responses, decoding failures and transport
	// failures.
	InternalError ErrorCode = "internal-error"

	// Unknown is the residual bucket.
	Unknown ErrorCode = "unknown"
)

// Error is the uniform failure value returned by every capability. The
// provider's raw error body, when one was received, is preserved verbatim in
// ProviderErrorJSON so that replayed failures are indistinguishable from
// live ones.
type Error struct {
	Code              ErrorCode `json:"code"`
	Message           string    `json:"message"`
	ProviderErrorJSON string    `json:"provider_error_json,omitempty"`
}

func (e *Error) Error() string {
	if e.ProviderErrorJSON != "" {
		return fmt.Sprintf("%s: %s (provider: %s)", e.Code, e.Message, e.ProviderErrorJSON)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InternalErrorf is shorthand for Errorf(InternalError, ...). Decoder and
// transport failures funnel through here.
func InternalErrorf(format string, args ...any) *Error {
	return Errorf(InternalError, format, args...)
}

// Unsupportedf is shorthand for Errorf(Unsupported, ...).
func Unsupportedf(format string, args ...any) *Error {
	return Errorf(Unsupported, format, args...)
}

// AsError coerces any error into an *Error so it can be persisted and
// replayed. Errors that already carry a code pass through untouched;
// everything else becomes Unknown with the original message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return &Error{Code: Unknown, Message: err.Error()}
}

// CodeOf returns the taxonomy code carried by err, or Unknown when err does
// not wrap an *Error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return Unknown
}

// ErrorCodeFromStatus maps an HTTP response status to the taxonomy.
func ErrorCodeFromStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimitExceeded
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusPaymentRequired:
		return AuthenticationFailed
	case status >= 400 && status < 500:
		return InvalidRequest
	default:
		return InternalError
	}
}

// ErrorFromResponse builds an *Error from a non-2xx provider response,
// keeping the raw body for oplog consumers.
func ErrorFromResponse(status int, body string) *Error {
	return &Error{
		Code:              ErrorCodeFromStatus(status),
		Message:           fmt.Sprintf("request failed with status %d", status),
		ProviderErrorJSON: body,
	}
}
