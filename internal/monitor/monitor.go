// Package monitor polls a remote workflow run until it reaches a terminal
// state or the client-side timeout elapses.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MaxQueryRetries is the default number of consecutive failed status queries
// tolerated before Watch fails.
const MaxQueryRetries = 3

// NoQueryRetries makes the first failed status query fatal.
const NoQueryRetries = -1

// Config controls a single Watch call. A zero MaxQueryRetries selects the
// default of MaxQueryRetries; any negative value disables retries.
type Config struct {
	Interval        time.Duration
	Timeout         time.Duration
	MaxQueryRetries int
}

func (c Config) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidConfiguration, c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfiguration, c.Timeout)
	}
	return nil
}

type Monitor struct {
	query  StatusQuery
	clock  Clock
	logger *slog.Logger
}

type Option func(*Monitor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

func New(query StatusQuery, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		query:  query,
		clock:  realClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Watch polls runID until it completes. On success the terminal Run is
// returned. Otherwise the returned error is a *Error wrapping ErrTimeout,
// ErrStatusQueryFailed or ErrInterrupted, and the last known snapshot is
// returned both directly and inside the error.
func (m *Monitor) Watch(ctx context.Context, runID int64, workflowRef string, cfg Config) (*Run, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	retries := cfg.MaxQueryRetries
	switch {
	case retries == 0:
		retries = MaxQueryRetries
	case retries < 0:
		retries = 0
	}

	start := m.clock.Now()
	run := &Run{
		ID:          runID,
		WatchID:     uuid.New().String(),
		WorkflowRef: workflowRef,
		Status:      StatusQueued,
		StartedAt:   start,
	}
	logger := m.logger.With("run_id", runID, "watch_id", run.WatchID)
	logger.Info("monitoring workflow run", "workflow", workflowRef, "interval", cfg.Interval, "timeout", cfg.Timeout)

	failures := 0
	polls := 0
	for {
		polls++
		res, err := m.query.RunStatus(ctx, runID)
		now := m.clock.Now()

		if err != nil {
			if ctx.Err() != nil {
				return m.stop(run, ErrInterrupted, ctx.Err())
			}
			failures++
			logger.Warn("status query failed", "consecutive_failures", failures, "max_retries", retries, "error", err)
			if failures > retries {
				return m.stop(run, ErrStatusQueryFailed, err)
			}
		} else {
			failures = 0
			status := Status(res.Status)
			if run.observe(status, now) {
				logger.Info("run status changed", "status", status, "poll", polls)
				if !status.Known() {
					logger.Debug("unrecognized status, polling as in_progress", "status", status)
				}
			}
			if status.Terminal() {
				run.Conclusion = res.Conclusion
				if status == StatusCancelled && run.Conclusion == "" {
					run.Conclusion = ConclusionCancelled
				}
				logger.Info("run finished", "status", status, "conclusion", run.Conclusion, "elapsed", now.Sub(start), "polls", polls)
				return run, nil
			}
		}

		if now.Sub(start) >= cfg.Timeout {
			logger.Warn("giving up on run", "last_status", run.LastObserved(), "elapsed", now.Sub(start), "polls", polls)
			snap := run.snapshot()
			snap.Status = StatusTimedOut
			return snap, &Error{Kind: ErrTimeout, Run: snap}
		}

		if err := ctx.Err(); err != nil {
			return m.stop(run, ErrInterrupted, err)
		}
		select {
		case <-ctx.Done():
			return m.stop(run, ErrInterrupted, ctx.Err())
		case <-m.clock.After(cfg.Interval):
		}
	}
}

func (m *Monitor) stop(run *Run, kind, cause error) (*Run, error) {
	snap := run.snapshot()
	return snap, &Error{Kind: kind, Run: snap, Err: cause}
}
