package lifecycle

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusNormalisesWireValues(t *testing.T) {
	cases := map[string]Status{
		"PENDING":    StatusPending,
		" picked_up": StatusPickedUp,
		"In Transit": StatusInTransit,
		"in_transit": StatusInTransit,
		"canceled":   StatusCancelled,
		"APPROVED":   StatusApproved,
		"returned":   StatusReturned,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseStatus("teleported")
	assert.ErrorIs(t, err, ErrUnknownStatus)
	_, err = ParseStatus("  ")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusDelivered: true,
		StatusCompleted: true,
		StatusCancelled: true,
		StatusFailed:    true,
		StatusReturned:  true,
	}
	for _, s := range Statuses() {
		assert.Equal(t, terminal[s], IsTerminal(s), s)
	}
}

func TestOrdinalStrictlyIncreasingAlongSteps(t *testing.T) {
	prev := -1
	for i, s := range Steps() {
		ordinal, ok := OrdinalOf(s)
		require.True(t, ok, s)
		assert.Equal(t, i, ordinal)
		assert.Greater(t, ordinal, prev)
		prev = ordinal
	}

	for _, s := range []Status{StatusCancelled, StatusFailed, StatusReturned, Status("bogus")} {
		_, ok := OrdinalOf(s)
		assert.False(t, ok, s)
	}
}

func TestCanTransitionTerminalOnlyAllowsNoop(t *testing.T) {
	for _, current := range Statuses() {
		if !IsTerminal(current) {
			continue
		}
		for _, requested := range Statuses() {
			assert.Equal(t, requested == current, CanTransition(current, requested), "%s -> %s", current, requested)
		}
	}
}

func TestCanTransitionActiveAllowsAnything(t *testing.T) {
	for _, current := range Statuses() {
		if IsTerminal(current) {
			continue
		}
		for _, requested := range Statuses() {
			assert.True(t, CanTransition(current, requested), "%s -> %s", current, requested)
		}
	}
}

func TestValidateStatusUpdateDeliveredToPending(t *testing.T) {
	assert.False(t, CanTransition(StatusDelivered, StatusPending))

	err := ValidateStatusUpdate(StatusDelivered, StatusPending)
	invalid, ok := AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, invalid.Current)
	assert.Equal(t, StatusPending, invalid.Requested)
	assert.ErrorIs(t, err, ErrTerminalStatus)

	assert.NoError(t, ValidateStatusUpdate(StatusDelivered, StatusDelivered))
	assert.True(t, IsNoop(StatusDelivered, StatusDelivered))
}

func TestValidateCancelRequiresReasonRegardlessOfTerminality(t *testing.T) {
	for _, current := range Statuses() {
		err := ValidateCancel(current, "   ")
		require.Error(t, err, current)
		assert.ErrorIs(t, err, ErrReasonRequired, current)
		invalid, ok := AsInvalidTransition(err)
		require.True(t, ok)
		assert.Equal(t, StatusCancelled, invalid.Requested)
	}

	assert.NoError(t, ValidateCancel(StatusInTransit, "customer unreachable"))
	assert.ErrorIs(t, ValidateCancel(StatusDelivered, "too late"), ErrTerminalStatus)
}

func TestValidateAssignWindow(t *testing.T) {
	allowed := []Status{StatusConfirmed, StatusApproved, StatusAssigned, StatusPickedUp, StatusInTransit}
	for _, s := range allowed {
		assert.NoError(t, ValidateAssign(s), s)
	}
	assert.ErrorIs(t, ValidateAssign(StatusPending), ErrAssignmentWindow)
	assert.ErrorIs(t, ValidateAssign(StatusCreated), ErrAssignmentWindow)
	assert.ErrorIs(t, ValidateAssign(StatusCompleted), ErrTerminalStatus)
	assert.ErrorIs(t, ValidateAssign(StatusCancelled), ErrTerminalStatus)
}

func TestAllowedActions(t *testing.T) {
	pending := AllowedActions(StatusPending)
	assert.True(t, pending.CanUpdateStatus)
	assert.True(t, pending.CanCancel)
	assert.False(t, pending.CanAssign)
	assert.NotContains(t, pending.NextStatuses, StatusPending)
	assert.NotContains(t, pending.NextStatuses, StatusCancelled)
	assert.Contains(t, pending.NextStatuses, StatusConfirmed)

	delivered := AllowedActions(StatusDelivered)
	assert.False(t, delivered.CanUpdateStatus)
	assert.False(t, delivered.CanCancel)
	assert.False(t, delivered.CanAssign)
	assert.Empty(t, delivered.NextStatuses)
}

func at(minute int) time.Time {
	return time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC)
}

func TestProjectPendingWithoutHistory(t *testing.T) {
	p := Project(StatusPending, nil)

	require.Len(t, p.Steps, StepCount)
	assert.Nil(t, p.Exception)
	assert.True(t, p.Steps[0].Active)
	assert.False(t, p.Steps[0].Completed)
	for _, step := range p.Steps[1:] {
		assert.False(t, step.Active)
		assert.False(t, step.Completed)
		assert.Nil(t, step.Timestamp)
	}
}

func TestProjectDeliveredWithFullHistory(t *testing.T) {
	history := []HistoryEntry{
		{To: StatusDelivered, OccurredAt: at(40)},
		{To: StatusPending, OccurredAt: at(0)},
		{To: StatusConfirmed, OccurredAt: at(10)},
		{To: StatusPickedUp, OccurredAt: at(20)},
		{To: StatusInTransit, OccurredAt: at(30)},
	}
	p := Project(StatusDelivered, history)

	assert.Nil(t, p.Exception)
	for i := 0; i < 4; i++ {
		assert.True(t, p.Steps[i].Completed, i)
		assert.False(t, p.Steps[i].Active, i)
	}
	assert.True(t, p.Steps[4].Active)
	assert.False(t, p.Steps[4].Completed)
	for i, step := range p.Steps {
		require.NotNil(t, step.Timestamp, i)
		assert.Equal(t, at(i*10), *step.Timestamp)
	}
	assert.Equal(t, StatusDelivered, history[0].To, "input history must not be reordered")
}

func TestProjectCompletedMarksAllStepsDone(t *testing.T) {
	p := Project(StatusCompleted, nil)
	for _, step := range p.Steps {
		assert.True(t, step.Completed)
		assert.False(t, step.Active)
	}
	assert.Nil(t, p.Exception)
}

func TestProjectCancelledProducesException(t *testing.T) {
	history := []HistoryEntry{
		{To: StatusPending, OccurredAt: at(0)},
		{To: StatusConfirmed, OccurredAt: at(5)},
		{To: StatusCancelled, Note: "customer unreachable", Actor: "ops", OccurredAt: at(9)},
	}
	p := Project(StatusCancelled, history)

	require.NotNil(t, p.Exception)
	assert.Equal(t, StatusCancelled, p.Exception.Kind)
	assert.Equal(t, "customer unreachable", p.Exception.Reason)
	require.NotNil(t, p.Exception.OccurredAt)
	assert.Equal(t, at(9), *p.Exception.OccurredAt)
	require.Len(t, p.Steps, StepCount)
	for _, step := range p.Steps {
		assert.False(t, step.Active)
		assert.False(t, step.Completed)
	}
}

func TestProjectFailedWithoutHistory(t *testing.T) {
	p := Project(StatusFailed, nil)
	require.NotNil(t, p.Exception)
	assert.Equal(t, StatusFailed, p.Exception.Kind)
	assert.Empty(t, p.Exception.Reason)
	assert.Nil(t, p.Exception.OccurredAt)
}

func TestProjectReturnedAndUnknownProduceException(t *testing.T) {
	history := []HistoryEntry{
		{To: StatusPending, OccurredAt: at(0)},
		{To: StatusDelivered, OccurredAt: at(30)},
		{To: StatusReturned, Note: "wrong address", OccurredAt: at(45)},
	}
	returned := Project(StatusReturned, history)
	require.NotNil(t, returned.Exception)
	assert.Equal(t, StatusReturned, returned.Exception.Kind)
	assert.Equal(t, "wrong address", returned.Exception.Reason)
	require.NotNil(t, returned.Exception.OccurredAt)
	assert.Equal(t, at(45), *returned.Exception.OccurredAt)

	unknown := Project(Status("lost-in-space"), history)
	require.NotNil(t, unknown.Exception)
	assert.Equal(t, Status("lost-in-space"), unknown.Exception.Kind)
	require.NotNil(t, unknown.Exception.OccurredAt)
	assert.Equal(t, at(45), *unknown.Exception.OccurredAt, "falls back to the latest entry")

	for _, p := range []Progress{returned, unknown} {
		require.Len(t, p.Steps, StepCount)
		for _, step := range p.Steps {
			assert.False(t, step.Active)
			assert.False(t, step.Completed)
		}
	}
	require.NotNil(t, returned.Steps[4].Timestamp)
	assert.Equal(t, at(30), *returned.Steps[4].Timestamp)
}

func TestProjectLatestEntryWinsForStepTimestamp(t *testing.T) {
	history := []HistoryEntry{
		{To: StatusPending, OccurredAt: at(0)},
		{To: StatusApproved, OccurredAt: at(3)},
		{To: StatusAssigned, OccurredAt: at(7)},
	}
	p := Project(StatusAssigned, history)
	assert.True(t, p.Steps[1].Active)
	require.NotNil(t, p.Steps[1].Timestamp)
	assert.Equal(t, at(7), *p.Steps[1].Timestamp)
}

func TestProjectIsIdempotent(t *testing.T) {
	history := []HistoryEntry{
		{To: StatusPending, OccurredAt: at(0)},
		{To: StatusPickedUp, OccurredAt: at(12)},
	}
	first, err := json.Marshal(Project(StatusPickedUp, history))
	require.NoError(t, err)
	second, err := json.Marshal(Project(StatusPickedUp, history))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{Current: StatusDelivered, Requested: StatusPending, Cause: ErrTerminalStatus}
	assert.Contains(t, err.Error(), "delivered -> pending")
	assert.True(t, errors.Is(err, ErrTerminalStatus))
}
