package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStatus indicates a value outside the status vocabulary.
	ErrUnknownStatus = errors.New("lifecycle: unknown status / 未知订单状态")
	// ErrTerminalStatus indicates the order already reached a terminal status.
	ErrTerminalStatus = errors.New("lifecycle: order is in a terminal status / 订单已处于终态")
	// ErrReasonRequired indicates a cancellation without a reason.
	ErrReasonRequired = errors.New("lifecycle: cancellation reason is required / 取消原因不能为空")
	// ErrAssignmentWindow indicates a rider assignment before confirmation or after completion.
	ErrAssignmentWindow = errors.New("lifecycle: rider assignment not available in current status / 当前状态不可分配骑手")
)

// InvalidTransitionError is returned by the validator before any network call.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
	Cause     error
}

func (e *InvalidTransitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid transition %s -> %s: %v", e.Current, e.Requested, e.Cause)
	}
	return fmt.Sprintf("invalid transition %s -> %s", e.Current, e.Requested)
}

func (e *InvalidTransitionError) Unwrap() error {
	return e.Cause
}

// AsInvalidTransition extracts an InvalidTransitionError from err.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var target *InvalidTransitionError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
