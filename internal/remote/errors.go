package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

type ErrorType string

const (
	ErrorTypeRateLimit      ErrorType = "RATE_LIMIT"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION"
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeNetwork        ErrorType = "NETWORK"
	ErrorTypeServer         ErrorType = "SERVER_ERROR"
	ErrorTypeUnknown        ErrorType = "UNKNOWN"
)

// DefaultRetryAfter applies when a 429 response carries no retry-after header.
const DefaultRetryAfter = 60 * time.Second

// ErrorInfo is the canonical classification of a failed outbound call. Every
// transport or HTTP failure is converted into one of these at the client
// boundary; everything upstream switches only on Type.
type ErrorInfo struct {
	Type       ErrorType
	Message    string
	StatusCode int    // recommended status for upstream reporting
	Code       string // optional platform-prefixed sub-code for logging
	RetryAfter time.Duration
	cause      error
}

func (e *ErrorInfo) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ErrorInfo) Unwrap() error {
	return e.cause
}

// StatusError is implemented by boundary errors that carry an HTTP response
// status, such as the CRM client's APIError.
type StatusError interface {
	error
	HTTPStatus() int
}

// RetryHinted is implemented by boundary errors that carry a server-supplied
// retry-after hint.
type RetryHinted interface {
	RetryAfterHint() (time.Duration, bool)
}

// PlatformTagged is implemented by boundary errors that know which platform
// produced them; the tag only feeds the sub-code, never the taxonomy.
type PlatformTagged interface {
	PlatformTag() string
}

// Classify maps a raw failure to its canonical ErrorInfo. It is total: any
// error, including nil-adjacent oddities, yields a usable classification.
func Classify(err error) *ErrorInfo {
	if err == nil {
		return &ErrorInfo{Type: ErrorTypeUnknown, Message: "unknown error", StatusCode: http.StatusInternalServerError}
	}

	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(err, statusErr)
	}

	if isTransportError(err) {
		return &ErrorInfo{
			Type:       ErrorTypeNetwork,
			Message:    err.Error(),
			StatusCode: http.StatusServiceUnavailable,
			Code:       subCode(err, ErrorTypeNetwork),
			cause:      err,
		}
	}

	return &ErrorInfo{
		Type:       ErrorTypeUnknown,
		Message:    err.Error(),
		StatusCode: http.StatusInternalServerError,
		Code:       subCode(err, ErrorTypeUnknown),
		cause:      err,
	}
}

func classifyStatus(err error, statusErr StatusError) *ErrorInfo {
	status := statusErr.HTTPStatus()
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := DefaultRetryAfter
		var hinted RetryHinted
		if errors.As(err, &hinted) {
			if d, ok := hinted.RetryAfterHint(); ok && d > 0 {
				retryAfter = d
			}
		}
		return &ErrorInfo{
			Type:       ErrorTypeRateLimit,
			Message:    "rate limit exceeded",
			StatusCode: http.StatusTooManyRequests,
			Code:       subCode(err, ErrorTypeRateLimit),
			RetryAfter: retryAfter,
			cause:      err,
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Reported as 400: a bad credential is a configuration problem the
		// owner must fix, not a transient fault worth retrying.
		return &ErrorInfo{
			Type:       ErrorTypeAuthentication,
			Message:    "authentication failed, check credentials",
			StatusCode: http.StatusBadRequest,
			Code:       subCode(err, ErrorTypeAuthentication),
			cause:      err,
		}
	case status == http.StatusBadRequest:
		return &ErrorInfo{
			Type:       ErrorTypeValidation,
			Message:    providerMessage(err),
			StatusCode: http.StatusBadRequest,
			Code:       subCode(err, ErrorTypeValidation),
			cause:      err,
		}
	case status == http.StatusNotFound:
		return &ErrorInfo{
			Type:       ErrorTypeNotFound,
			Message:    "remote resource not found",
			StatusCode: http.StatusNotFound,
			Code:       subCode(err, ErrorTypeNotFound),
			cause:      err,
		}
	case status >= http.StatusInternalServerError:
		return &ErrorInfo{
			Type:       ErrorTypeServer,
			Message:    "remote server error, retry later",
			StatusCode: http.StatusServiceUnavailable,
			Code:       subCode(err, ErrorTypeServer),
			cause:      err,
		}
	default:
		return &ErrorInfo{
			Type:       ErrorTypeUnknown,
			Message:    err.Error(),
			StatusCode: http.StatusInternalServerError,
			Code:       subCode(err, ErrorTypeUnknown),
			cause:      err,
		}
	}
}

func providerMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "invalid request"
	}
	return msg
}

func subCode(err error, t ErrorType) string {
	var tagged PlatformTagged
	if !errors.As(err, &tagged) {
		return ""
	}
	platform := strings.TrimSpace(tagged.PlatformTag())
	if platform == "" {
		return ""
	}
	return platform + "_" + strings.ToLower(string(t))
}

func isTransportError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
