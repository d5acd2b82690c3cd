package download

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retrying retries the wrapped downloader on HTTP 429 only. Every other
// failure is returned after the first attempt.
type Retrying struct {
	next        Downloader
	maxAttempts int
	delay       time.Duration
	timer       retry.Timer
	logger      *slog.Logger
}

// NewRetrying wraps next with a bounded 429 retry loop.
func NewRetrying(next Downloader, maxAttempts int, delay time.Duration, logger *slog.Logger) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrying{next: next, maxAttempts: maxAttempts, delay: delay, logger: logger}
}

func (r *Retrying) Download(ctx context.Context, url, dir string) (string, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(r.maxAttempts)),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrRateLimited)
		}),
		retry.OnRetry(func(n uint, err error) {
			attempt := int(n) + 1
			if attempt >= r.maxAttempts {
				return
			}
			r.logger.Warn("rate limited, waiting before retry",
				"attempt", attempt,
				"max_attempts", r.maxAttempts,
				"delay", r.delay.String(),
			)
		}),
	}
	if r.timer != nil {
		opts = append(opts, retry.WithTimer(r.timer))
	}

	path, err := retry.DoWithData(func() (string, error) {
		return r.next.Download(ctx, url, dir)
	}, opts...)
	if err == nil {
		return path, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(err, ErrRateLimited) {
		r.logger.Error("rate limit retries exhausted", "attempts", r.maxAttempts)
		return "", &RateLimitExhaustedError{Attempts: r.maxAttempts, Last: err}
	}
	return "", err
}
