package lifecycle

import "strings"

// CanTransition is the coarse client-side guard. Terminal orders only accept
// the null transition; active orders may be offered any status because the
// order-service decides business legality.
func CanTransition(current, requested Status) bool {
	if IsTerminal(current) {
		return requested == current
	}
	return true
}

// IsNoop reports a null transition that needs no order-service call.
func IsNoop(current, requested Status) bool {
	return current == requested
}

// ValidateStatusUpdate checks a generic status update request.
func ValidateStatusUpdate(current, requested Status) error {
	if !requested.Valid() {
		return &InvalidTransitionError{Current: current, Requested: requested, Cause: ErrUnknownStatus}
	}
	if !CanTransition(current, requested) {
		return &InvalidTransitionError{Current: current, Requested: requested, Cause: ErrTerminalStatus}
	}
	return nil
}

// ValidateCancel checks a cancel request. The reason is checked first so an
// empty reason is rejected whatever the current status is.
func ValidateCancel(current Status, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return &InvalidTransitionError{Current: current, Requested: StatusCancelled, Cause: ErrReasonRequired}
	}
	if IsTerminal(current) {
		return &InvalidTransitionError{Current: current, Requested: StatusCancelled, Cause: ErrTerminalStatus}
	}
	return nil
}

// ValidateAssign checks that a rider can be assigned: the order must be past
// confirmation and still active.
func ValidateAssign(current Status) error {
	if IsTerminal(current) {
		return &InvalidTransitionError{Current: current, Requested: StatusAssigned, Cause: ErrTerminalStatus}
	}
	ordinal, ok := OrdinalOf(current)
	if !ok || ordinal < 1 {
		return &InvalidTransitionError{Current: current, Requested: StatusAssigned, Cause: ErrAssignmentWindow}
	}
	return nil
}

// Actions summarises what the portal may offer for an order in status current.
type Actions struct {
	CanUpdateStatus bool     `json:"can_update_status"`
	CanCancel       bool     `json:"can_cancel"`
	CanAssign       bool     `json:"can_assign"`
	NextStatuses    []Status `json:"next_statuses"`
}

// AllowedActions derives the action set from the validator rules.
func AllowedActions(current Status) Actions {
	actions := Actions{
		CanUpdateStatus: !IsTerminal(current),
		CanCancel:       !IsTerminal(current),
		CanAssign:       ValidateAssign(current) == nil,
		NextStatuses:    []Status{},
	}
	if !actions.CanUpdateStatus {
		return actions
	}
	for _, s := range allStatuses {
		if s == current || s == StatusCancelled {
			continue
		}
		if CanTransition(current, s) {
			actions.NextStatuses = append(actions.NextStatuses, s)
		}
	}
	return actions
}
