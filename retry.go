package steamtrade

import (
	"context"
	"errors"
	"time"

	"github.com/zergu1ar/steamtrade/internal/clock"
)

// RetryPolicy bounds how often an operation is attempted. ShouldRetry is
// evaluated after every attempt with that attempt's outcome; a nil
// ShouldRetry never retries.
type RetryPolicy[T any] struct {
	Attempts    int
	Delay       time.Duration
	ShouldRetry func(result T, err error) bool
	// OnRetry is called before sleeping ahead of attempt number next.
	OnRetry func(next int, result T, err error)
}

// Do runs op under the policy and returns the outcome of the last attempt.
// Context errors end the loop immediately.
func (p RetryPolicy[T]) Do(ctx context.Context, clk clock.Clock, op func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = op(ctx)
		if isContextError(err) {
			return result, err
		}
		if attempt >= attempts || p.ShouldRetry == nil || !p.ShouldRetry(result, err) {
			return result, err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, result, err)
		}
		if sleepErr := clock.Sleep(ctx, clk, p.Delay); sleepErr != nil {
			return result, sleepErr
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isTransient reports whether err may go away on its own. Caller errors,
// configuration errors and confirmation rejections never do.
func isTransient(err error) bool {
	if err == nil || isContextError(err) {
		return false
	}
	return !errors.Is(err, ClientError) &&
		!errors.Is(err, ConfirmationError) &&
		!errors.Is(err, InvalidSecretError)
}
