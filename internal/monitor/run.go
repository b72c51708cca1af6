package monitor

import (
	"context"
	"time"
)

// Status is a workflow run status as reported by the CI service, or one of
// the local terminal values.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"

	// StatusTimedOut is set locally when the monitor gives up. It never comes
	// from the remote side.
	StatusTimedOut Status = "timed_out_client_side"
)

// Terminal reports whether no further remote transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Known reports whether s is part of the recognized set. Unknown values are
// polled like in_progress.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Conclusion values reported for completed runs. Other strings are kept
// verbatim.
const (
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
)

// Transition is one observed status change.
type Transition struct {
	Status     Status
	ObservedAt time.Time
}

// Run is the local record of a monitored workflow run. It is owned by a single
// Watch call.
type Run struct {
	ID          int64
	WatchID     string
	WorkflowRef string
	Status      Status
	Conclusion  string
	StartedAt   time.Time
	Transitions []Transition
}

// LastObserved returns the most recent status reported by the remote side.
func (r *Run) LastObserved() Status {
	if len(r.Transitions) == 0 {
		return StatusQueued
	}
	return r.Transitions[len(r.Transitions)-1].Status
}

// Succeeded is true for a completed run concluding with success.
func (r *Run) Succeeded() bool {
	return r.Status.Terminal() && r.Conclusion == ConclusionSuccess
}

func (r *Run) snapshot() *Run {
	cp := *r
	cp.Transitions = append([]Transition(nil), r.Transitions...)
	return &cp
}

// observe records a status if it differs from the last one.
func (r *Run) observe(status Status, at time.Time) bool {
	if len(r.Transitions) > 0 && r.Transitions[len(r.Transitions)-1].Status == status {
		return false
	}
	r.Transitions = append(r.Transitions, Transition{Status: status, ObservedAt: at})
	r.Status = status
	return true
}

// QueryResult is what a single status query returns.
type QueryResult struct {
	Status     string
	Conclusion string
}

// StatusQuery fetches the current status of a run.
type StatusQuery interface {
	RunStatus(ctx context.Context, runID int64) (QueryResult, error)
}

// StatusQueryFunc adapts a function to StatusQuery.
type StatusQueryFunc func(ctx context.Context, runID int64) (QueryResult, error)

func (f StatusQueryFunc) RunStatus(ctx context.Context, runID int64) (QueryResult, error) {
	return f(ctx, runID)
}
