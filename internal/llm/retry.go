package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retrying retries a Client with exponential backoff. Context cancellation
// is never retried.
type Retrying struct {
	client          Client
	maxTries        uint
	initialInterval time.Duration
	logger          *slog.Logger
}

// NewRetrying wraps c, attempting each call at most maxTries times.
func NewRetrying(c Client, maxTries uint, logger *slog.Logger) *Retrying {
	if maxTries == 0 {
		maxTries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{client: c, maxTries: maxTries, initialInterval: 500 * time.Millisecond, logger: logger}
}

// WithInitialInterval sets the first backoff delay.
func (r *Retrying) WithInitialInterval(d time.Duration) *Retrying {
	r.initialInterval = d
	return r
}

// Generate implements Client.
func (r *Retrying) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	op := func() (string, error) {
		out, err := r.client.Generate(ctx, prompt, params)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("llm call failed, retrying", "error", err, "next", next)
		}),
	)
}
