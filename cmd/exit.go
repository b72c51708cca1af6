package cmd

import (
	"errors"

	"github.com/bonjohen/hubqueue/internal/monitor"
)

// errRunFailed is returned when a watched run completes without success.
var errRunFailed = errors.New("workflow run did not succeed")

const (
	ExitOK        = 0
	ExitError     = 1
	ExitRunFailed = 2
	ExitTimeout   = 3
)

// ExitCode maps a command error to the process exit status. A client-side
// timeout has its own code since the run may still succeed.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, monitor.ErrTimeout):
		return ExitTimeout
	case errors.Is(err, errRunFailed):
		return ExitRunFailed
	default:
		return ExitError
	}
}
