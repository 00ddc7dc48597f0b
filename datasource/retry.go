package datasource

import (
	"context"
	"time"
)

// retryConnect runs connect with exponential backoff until it succeeds, the
// retry budget runs out, or ctx is done.
func retryConnect(ctx context.Context, rc *RetryConfig, connect func(context.Context) error) error {
	delay := rc.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	attempts := rc.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = connect(ctx)
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
			if rc.MaxDelay > 0 && delay > rc.MaxDelay {
				delay = rc.MaxDelay
			}
		}
	}
	return err
}
