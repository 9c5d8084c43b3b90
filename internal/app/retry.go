package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

// RetryPolicy retries batch items that failed on a transient remote error.
// Anything that may already have written to the host is not retried.
type RetryPolicy struct {
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

// NewRetryPolicy creates a RetryPolicy. attempts=1 runs each item once.
func NewRetryPolicy(attempts uint, delay time.Duration, logger *slog.Logger) *RetryPolicy {
	if attempts == 0 {
		attempts = 1
	}
	return &RetryPolicy{attempts: attempts, delay: delay, logger: logger}
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if p.attempts <= 1 {
		return fn()
	}
	return retry.Do(
		fn,
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(p.delay),
		retry.Context(ctx),
		retry.RetryIf(Transient),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("retrying batch item after error", "attempt", n+1, "error", err)
		}),
	)
}

// Transient reports whether err is a remote failure worth retrying: a 5xx
// or 429 from the API. Host write errors never are.
func Transient(err error) bool {
	var hwe *domain.HostWriteError
	if errors.As(err, &hwe) {
		return false
	}
	var rfe *domain.RemoteFetchError
	if errors.As(err, &rfe) {
		return rfe.Status >= 500 || rfe.Status == http.StatusTooManyRequests
	}
	return false
}
