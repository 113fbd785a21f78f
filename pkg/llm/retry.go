package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

// RetryConfig controls retries of a model that cannot be reached.
type RetryConfig struct {
	Logger     *slog.Logger
	MaxRetries uint
	BackOff    backoff.BackOff // Defaults to exponential backoff.
}

// WithRetry wraps client so failed invocations are retried up to MaxRetries
// times. With MaxRetries == 0 the client is returned unchanged and failures
// stay fatal to the caller.
func WithRetry(client Client, cfg RetryConfig) Client {
	if cfg.MaxRetries == 0 {
		return client
	}
	if cfg.BackOff == nil {
		cfg.BackOff = backoff.NewExponentialBackOff()
	}
	return ClientFunc(func(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
		attempt := 0
		return backoff.Retry(ctx, func() (conversation.Turn, error) {
			if attempt > 0 && cfg.Logger != nil {
				cfg.Logger.Warn("llm: invocation failed, retrying", "attempt", attempt)
			}
			attempt++
			turn, err := client.Invoke(ctx, turns)
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return turn, backoff.Permanent(err)
			}
			return turn, err
		}, backoff.WithBackOff(cfg.BackOff), backoff.WithMaxTries(cfg.MaxRetries+1))
	})
}
