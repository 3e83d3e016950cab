package deluge

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorCode represents a specific error type for client-side handling
type ErrorCode string

const (
	// ErrorCodeNone indicates no error
	ErrorCodeNone ErrorCode = ""

	// ErrorCodeAuthFailure indicates the password was rejected - requires user intervention
	ErrorCodeAuthFailure ErrorCode = "AUTH_FAILURE"

	// ErrorCodeNotAuthenticated indicates the server no longer recognizes the session
	ErrorCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"

	// ErrorCodeAPI indicates a method-level failure reported by deluge-web
	ErrorCodeAPI ErrorCode = "API_ERROR"

	// ErrorCodeInvalidResponse indicates a body that is not a JSON-RPC envelope
	ErrorCodeInvalidResponse ErrorCode = "INVALID_RESPONSE"

	// ErrorCodeTimeout indicates connection or request timeout - temporary, can retry
	ErrorCodeTimeout ErrorCode = "TIMEOUT"

	// ErrorCodeDNS indicates DNS resolution failure - check hostname configuration
	ErrorCodeDNS ErrorCode = "DNS_ERROR"

	// ErrorCodeHTTPSRequired indicates HTTP was used but HTTPS is required
	ErrorCodeHTTPSRequired ErrorCode = "HTTPS_REQUIRED"

	// ErrorCodeSSLError indicates SSL/TLS certificate or connection error
	ErrorCodeSSLError ErrorCode = "SSL_ERROR"

	// ErrorCodeConnectionRefused indicates the server actively refused the connection
	ErrorCodeConnectionRefused ErrorCode = "CONNECTION_REFUSED"

	// ErrorCodeNetworkUnreachable indicates network routing issues
	ErrorCodeNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"

	// ErrorCodeBadGateway indicates a proxy/gateway error (502)
	ErrorCodeBadGateway ErrorCode = "BAD_GATEWAY"

	// ErrorCodeServiceUnavailable indicates the service is temporarily unavailable (503)
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// ErrorCodeUnknown indicates an unclassified error
	ErrorCodeUnknown ErrorCode = "UNKNOWN"
)

// deluge-web reports an unauthenticated request with code 1 and this message.
const (
	notAuthenticatedCode    = 1
	notAuthenticatedMessage = "Not authenticated"
)

// TransportError is a network or HTTP-layer failure. Its message always
// starts with "HTTP request failed".
type TransportError struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Err        error
	// Permanent indicates whether this error requires user intervention (true)
	// or can be resolved by retrying (false)
	Permanent bool
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP request failed: %s (%v)", e.Message, e.Err)
	}
	return fmt.Sprintf("HTTP request failed: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the endpoint answered with something that is not a
// JSON-RPC envelope.
type ProtocolError struct {
	Body string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("Not a valid JSON response: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// APIError is a method-level failure reported in the envelope's error field.
type APIError struct {
	Method  string
	Message string
	// Code is the numeric code sent by the server, 0 when absent.
	Code int
	Raw  json.RawMessage
}

func (e *APIError) Error() string {
	return "API call failed: " + e.Message
}

// NotAuthenticated reports whether the server rejected the call because the
// session is missing or expired.
func (e *APIError) NotAuthenticated() bool {
	if e.Code != 0 {
		return e.Code == notAuthenticatedCode
	}
	return e.Message == notAuthenticatedMessage
}

// AuthenticationError is returned when deluge-web rejects the password.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Authentication failed: %s (%v)", e.Message, e.Err)
	}
	return "Authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// newTransportError classifies cause and wraps it as a TransportError.
func newTransportError(cause error) *TransportError {
	code, message, permanent := ClassifyError(cause)
	return &TransportError{
		Code:      code,
		Message:   message,
		Err:       cause,
		Permanent: permanent,
	}
}

// ClassifyError analyzes a transport-level cause and returns its code, a
// human readable description and whether it needs user intervention.
func ClassifyError(err error) (ErrorCode, string, bool) {
	if err == nil {
		return ErrorCodeNone, "", false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Code, transportErr.Message, transportErr.Permanent
	}

	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorCodeDNS, fmt.Sprintf("failed to resolve hostname %s", dnsErr.Name), true
	}

	// Network operation errors (connection refused, timeout, etc.)
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return classifyOpError(opErr)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return ErrorCodeTimeout, "request timed out", false
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ErrorCodeSSLError, "SSL certificate verification failed", true
	}

	return classifyByMessage(err.Error())
}

// classifyOpError classifies net.OpError errors
func classifyOpError(opErr *net.OpError) (ErrorCode, string, bool) {
	if opErr.Op == "dial" {
		msg := opErr.Error()
		if strings.Contains(msg, "connection refused") {
			return ErrorCodeConnectionRefused, "connection refused, is deluge-web running and is the URL correct?", false
		}

		if strings.Contains(msg, "no route to host") ||
			strings.Contains(msg, "network is unreachable") {
			return ErrorCodeNetworkUnreachable, "network unreachable", false
		}
	}

	if opErr.Timeout() {
		return ErrorCodeTimeout, "connection timed out", false
	}

	return ErrorCodeUnknown, "network operation failed", false
}

// classifyByMessage classifies errors based on error message patterns
func classifyByMessage(errStr string) (ErrorCode, string, bool) {
	lowerErr := strings.ToLower(errStr)

	switch {
	case strings.Contains(lowerErr, "timeout") ||
		strings.Contains(lowerErr, "deadline exceeded") ||
		strings.Contains(lowerErr, "context canceled"):
		return ErrorCodeTimeout, "request timed out", false

	case strings.Contains(lowerErr, "malformed http response") ||
		strings.Contains(lowerErr, "first record does not look like a tls handshake"):
		return ErrorCodeHTTPSRequired, "protocol mismatch, check http/https in the URL", true

	case strings.Contains(lowerErr, "certificate") ||
		strings.Contains(lowerErr, "x509") ||
		strings.Contains(lowerErr, "tls"):
		return ErrorCodeSSLError, "SSL/TLS connection failed", true

	case strings.Contains(lowerErr, "connection refused"):
		return ErrorCodeConnectionRefused, "connection refused, is deluge-web running and is the URL correct?", false

	case strings.Contains(lowerErr, "no such host"):
		return ErrorCodeDNS, "DNS resolution failed", true
	}

	return ErrorCodeUnknown, errStr, false
}

// classifyHTTPStatusCode turns a non-2xx status into a TransportError
func classifyHTTPStatusCode(statusCode int, body string) *TransportError {
	status := fmt.Sprintf("status %d", statusCode)
	if body != "" {
		status = fmt.Sprintf("status %d: %s", statusCode, body)
	}

	switch statusCode {
	case 401, 403:
		return &TransportError{Code: ErrorCodeAuthFailure, StatusCode: statusCode, Message: status, Permanent: true}
	case 502:
		return &TransportError{Code: ErrorCodeBadGateway, StatusCode: statusCode, Message: status}
	case 503:
		return &TransportError{Code: ErrorCodeServiceUnavailable, StatusCode: statusCode, Message: status}
	case 504:
		return &TransportError{Code: ErrorCodeTimeout, StatusCode: statusCode, Message: status}
	default:
		return &TransportError{Code: ErrorCodeUnknown, StatusCode: statusCode, Message: status, Permanent: statusCode < 500}
	}
}

// IsRetryableError returns true if the error is temporary and a later call
// may succeed. Retrying is left to the caller.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return !IsPermanentError(err)
}

// IsPermanentError returns true if the error requires user intervention
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Permanent
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.NotAuthenticated()
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return true
	}

	_, _, permanent := ClassifyError(err)
	return permanent
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrorCodeNone
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return ErrorCodeAuthFailure
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.NotAuthenticated() {
			return ErrorCodeNotAuthenticated
		}
		return ErrorCodeAPI
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return ErrorCodeInvalidResponse
	}

	code, _, _ := ClassifyError(err)
	return code
}
