// Package lifecycle models the order status lifecycle: the canonical status
// vocabulary, the coarse transition guard used before any order-service call,
// and the projection of a status plus its history onto the five-step tracker.
//
// Everything in this package is pure; callers own I/O.
package lifecycle

import (
	"fmt"
	"strings"
)

// Status 表示订单在 order-service 中的状态值。
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusApproved  Status = "approved"
	StatusAssigned  Status = "assigned"
	StatusPickedUp  Status = "picked-up"
	StatusInTransit Status = "in-transit"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"

	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
	StatusReturned  Status = "returned"
)

// StepCount is the number of stages rendered by the tracker.
const StepCount = 5

var allStatuses = []Status{
	StatusCreated,
	StatusPending,
	StatusConfirmed,
	StatusApproved,
	StatusAssigned,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
	StatusReturned,
}

// steps are the canonical tracker stages, indexed by ordinal.
var steps = [StepCount]Status{
	StatusPending,
	StatusConfirmed,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
}

var ordinals = map[Status]int{
	StatusCreated:   0,
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusApproved:  1,
	StatusAssigned:  1,
	StatusPickedUp:  2,
	StatusInTransit: 3,
	StatusDelivered: 4,
	StatusCompleted: 4,
}

var labels = map[Status]string{
	StatusCreated:   "Created",
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusApproved:  "Approved",
	StatusAssigned:  "Rider Assigned",
	StatusPickedUp:  "Picked Up",
	StatusInTransit: "In Transit",
	StatusDelivered: "Delivered",
	StatusCompleted: "Completed",
	StatusCancelled: "Cancelled",
	StatusFailed:    "Failed",
	StatusReturned:  "Returned",
}

// Tone is the presentation hint the portal maps to a chip colour.
type Tone string

const (
	ToneDefault Tone = "default"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

var tones = map[Status]Tone{
	StatusCreated:   ToneDefault,
	StatusPending:   ToneWarning,
	StatusConfirmed: ToneInfo,
	StatusApproved:  ToneInfo,
	StatusAssigned:  ToneInfo,
	StatusPickedUp:  ToneInfo,
	StatusInTransit: ToneInfo,
	StatusDelivered: ToneSuccess,
	StatusCompleted: ToneSuccess,
	StatusCancelled: ToneError,
	StatusFailed:    ToneError,
	StatusReturned:  ToneWarning,
}

var aliases = map[string]Status{
	"canceled":  StatusCancelled,
	"pickedup":  StatusPickedUp,
	"intransit": StatusInTransit,
}

// ParseStatus normalises a wire value into a Status.
func ParseStatus(raw string) (Status, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.NewReplacer("_", "-", " ", "-").Replace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty value", ErrUnknownStatus)
	}
	if alias, ok := aliases[value]; ok {
		return alias, nil
	}
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Valid reports whether s belongs to the vocabulary.
func (s Status) Valid() bool {
	_, ok := labels[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// Label returns the English display label, or the raw value for unknown statuses.
func (s Status) Label() string {
	if label, ok := labels[s]; ok {
		return label
	}
	return string(s)
}

// Tone returns the presentation tone of s.
func (s Status) Tone() Tone {
	if tone, ok := tones[s]; ok {
		return tone
	}
	return ToneDefault
}

// IsTerminal reports whether no further progression is expected from s.
func IsTerminal(s Status) bool {
	switch s {
	case StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed, StatusReturned:
		return true
	default:
		return false
	}
}

// OrdinalOf returns the tracker stage of s. The boolean is false for statuses
// that leave the normal progression; callers render an exception view for those.
func OrdinalOf(s Status) (int, bool) {
	ordinal, ok := ordinals[s]
	return ordinal, ok
}

// Statuses returns the full vocabulary in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Steps returns the tracker stages in order.
func Steps() []Status {
	out := make([]Status, StepCount)
	copy(out, steps[:])
	return out
}
