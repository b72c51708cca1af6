package monitor_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bonjohen/hubqueue/internal/monitor"
)

// fakeClock advances instantly whenever the monitor sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

var errTransient = errors.New("502 bad gateway")

type step struct {
	status     string
	conclusion string
	err        error
}

// scriptedQuery replays steps and repeats the last one forever.
type scriptedQuery struct {
	steps []step
	calls int
	onCall func(call int)
}

func (q *scriptedQuery) RunStatus(_ context.Context, _ int64) (monitor.QueryResult, error) {
	q.calls++
	if q.onCall != nil {
		q.onCall(q.calls)
	}
	s := q.steps[len(q.steps)-1]
	if q.calls <= len(q.steps) {
		s = q.steps[q.calls-1]
	}
	if s.err != nil {
		return monitor.QueryResult{}, s.err
	}
	return monitor.QueryResult{Status: s.status, Conclusion: s.conclusion}, nil
}
