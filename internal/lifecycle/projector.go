package lifecycle

import (
	"sort"
	"time"
)

// HistoryEntry is one recorded transition, as returned by the order-service.
type HistoryEntry struct {
	From       *Status   `json:"from_status"`
	To         Status    `json:"to_status"`
	Note       string    `json:"note,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProgressStep is one tracker stage.
type ProgressStep struct {
	Label     string     `json:"label"`
	Status    Status     `json:"status"`
	Ordinal   int        `json:"ordinal"`
	Completed bool       `json:"completed"`
	Active    bool       `json:"active"`
	Timestamp *time.Time `json:"timestamp"`
}

// ProgressException replaces the stepper for orders that left the progression.
type ProgressException struct {
	Kind       Status     `json:"kind"`
	Reason     string     `json:"reason"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// Progress is the tracker projection of an order.
type Progress struct {
	Current   Status             `json:"current"`
	Steps     []ProgressStep     `json:"steps"`
	Exception *ProgressException `json:"exception"`
}

// Project maps the current status and its history onto the five tracker
// stages. It never mutates history.
func Project(current Status, history []HistoryEntry) Progress {
	ordered := sortedHistory(history)

	progress := Progress{
		Current: current,
		Steps:   make([]ProgressStep, StepCount),
	}
	for i, s := range steps {
		progress.Steps[i] = ProgressStep{
			Label:     s.Label(),
			Status:    s,
			Ordinal:   i,
			Timestamp: stepTimestamp(ordered, i),
		}
	}

	ordinal, inProgression := OrdinalOf(current)
	if !inProgression {
		progress.Exception = exceptionFor(current, ordered)
		return progress
	}

	for i := range progress.Steps {
		if current == StatusCompleted {
			progress.Steps[i].Completed = true
			continue
		}
		progress.Steps[i].Completed = i < ordinal
		progress.Steps[i].Active = i == ordinal
	}
	return progress
}

func sortedHistory(history []HistoryEntry) []HistoryEntry {
	ordered := make([]HistoryEntry, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})
	return ordered
}

// stepTimestamp returns the most recent entry landing on the given stage.
func stepTimestamp(ordered []HistoryEntry, ordinal int) *time.Time {
	for i := len(ordered) - 1; i >= 0; i-- {
		entryOrdinal, ok := OrdinalOf(ordered[i].To)
		if !ok || entryOrdinal != ordinal {
			continue
		}
		ts := ordered[i].OccurredAt
		return &ts
	}
	return nil
}

func exceptionFor(current Status, ordered []HistoryEntry) *ProgressException {
	exception := &ProgressException{Kind: current}
	if len(ordered) == 0 {
		return exception
	}
	last := ordered[len(ordered)-1]
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].To == current {
			last = ordered[i]
			break
		}
	}
	ts := last.OccurredAt
	exception.Reason = last.Note
	exception.OccurredAt = &ts
	return exception
}
