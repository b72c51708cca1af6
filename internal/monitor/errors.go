package monitor

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid monitor configuration")
	ErrTimeout              = errors.New("monitor timed out")
	ErrStatusQueryFailed    = errors.New("status query failed")
	ErrInterrupted          = errors.New("monitor interrupted")
)

// Error carries the last known run snapshot along with the reason the monitor
// stopped. Match the reason with errors.Is and extract the snapshot with
// errors.As.
type Error struct {
	Kind error
	Run  *Run
	Err  error
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Kind, ErrTimeout):
		return fmt.Sprintf("monitor gave up waiting for run %d (last status %s); the run itself has not failed", e.Run.ID, e.Run.LastObserved())
	case e.Err != nil:
		return fmt.Sprintf("%v for run %d: %v", e.Kind, e.Run.ID, e.Err)
	default:
		return fmt.Sprintf("%v for run %d", e.Kind, e.Run.ID)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
