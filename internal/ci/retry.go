package ci

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// error or runs out of attempts.
func (c *Client) retryWithBackoff(ctx context.Context, operation string, attempts uint, delay time.Duration, retryable func(error) bool, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retry attempt", "operation", operation, "attempt", n+1, "max_attempts", attempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
}
