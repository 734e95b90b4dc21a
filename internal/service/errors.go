// 文件路径: internal/service/errors.go
package service

import (
	"errors"
	"fmt"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

var (
	// ErrNotFound indicates requested resource does not exist.
	ErrNotFound = errors.New("service: not found / 未找到资源")
	// ErrUnauthorized indicates the order-service rejected our credentials.
	ErrUnauthorized = errors.New("service: unauthorized / 未授权")
	// ErrMutationInFlight indicates another mutation on the same order has not finished.
	ErrMutationInFlight = errors.New("service: mutation already in flight / 该订单已有变更正在处理")
	// ErrInvalidInput indicates a malformed request argument.
	ErrInvalidInput = errors.New("service: invalid input / 参数无效")
)

// StaleStateError reports that the order moved on before our mutation landed.
// View holds the authoritative state fetched afterwards; it is nil when the refetch failed.
type StaleStateError struct {
	OrderID  string
	Expected lifecycle.Status
	Actual   lifecycle.Status
	View     *OrderView
	Cause    error
}

func (e *StaleStateError) Error() string {
	msg := fmt.Sprintf("service: order %s changed concurrently", e.OrderID)
	if e.Expected != "" {
		msg += fmt.Sprintf(" (expected %s, now %s)", e.Expected, e.Actual)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StaleStateError) Unwrap() error {
	return e.Cause
}

// AsStaleState extracts a StaleStateError from err.
func AsStaleState(err error) (*StaleStateError, bool) {
	var target *StaleStateError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
