package similarity

import (
	"context"
	"fmt"
	"time"
)

// retry runs fn up to 1+MaxRetries times with exponential backoff between
// attempts. Context cancellation stops the loop immediately.
func retry[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := s.opts.Backoff
	attempts := s.opts.MaxRetries + 1

	var err error
	for i := 0; i < attempts; i++ {
		var out T
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		if s.opts.Retryable != nil && !s.opts.Retryable(err) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}

		s.logger.Warn(fmt.Sprintf("%s failed, retrying", op),
			"error", err,
			"attempt", i+1,
			"max_retries", s.opts.MaxRetries,
			"next_retry_in", delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if attempts > 1 {
		return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
	}
	return zero, err
}
