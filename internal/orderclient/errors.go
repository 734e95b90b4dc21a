package orderclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse indicates the order-service answered with an unrecognised body.
	ErrMalformedResponse = errors.New("orderclient: malformed response / 响应格式无法识别")
	// ErrOrderIDRequired indicates an empty order id.
	ErrOrderIDRequired = errors.New("orderclient: order id is required / 订单 ID 不能为空")
)

// NetworkError wraps transport failures (DNS, connection reset, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("orderclient: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx answer from the order-service.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("orderclient: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("orderclient: %s: status %d", e.Op, e.StatusCode)
}

// Conflict reports an optimistic-concurrency rejection.
func (e *ServerError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

// NotFound reports a missing order.
func (e *ServerError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Unauthorized reports rejected credentials.
func (e *ServerError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ErrorCategory classifies failures for retry decisions.
type ErrorCategory int

const (
	CategoryRetryable ErrorCategory = iota
	CategoryPermanent
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryRetryable:
		return "retryable"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifyError decides whether a read can be retried.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryPermanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return CategoryRetryable
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		switch {
		case srvErr.StatusCode == http.StatusTooManyRequests,
			srvErr.StatusCode == http.StatusBadGateway,
			srvErr.StatusCode == http.StatusServiceUnavailable,
			srvErr.StatusCode == http.StatusGatewayTimeout:
			return CategoryRetryable
		default:
			return CategoryPermanent
		}
	}
	return CategoryPermanent
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	return ClassifyError(err) == CategoryRetryable
}

// AsServerError extracts a ServerError from err.
func AsServerError(err error) (*ServerError, bool) {
	var target *ServerError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
