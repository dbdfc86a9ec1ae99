package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/teemow/meetsched/internal/logging"
)

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 4

// Policy configures Do. The zero value is usable and means DefaultMaxRetries
// retries with real sleeps.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero selects DefaultMaxRetries; a negative value disables retries.
	MaxRetries int

	// Sleep waits for d or until ctx is done. Tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each delay.
	OnRetry func(ctx context.Context, name string, attempt int, err error)

	Logger *slog.Logger
}

// DefaultPolicy returns a Policy with DefaultMaxRetries.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries}
}

func (p Policy) maxRetries() int {
	switch {
	case p.MaxRetries < 0:
		return 0
	case p.MaxRetries == 0:
		return DefaultMaxRetries
	default:
		return p.MaxRetries
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p Policy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// newSchedule returns the 2^attempt second delay generator.
func newSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.Reset()
	return b
}

// Do runs op, retrying retryable failures with exponential delays. The
// returned error is the last one op produced, unwrapped, unless ctx ends
// while waiting, in which case ctx.Err() is returned.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	schedule := newSchedule()
	retries := p.maxRetries()
	logger := logging.WithOperation(p.logger(), name)

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= retries || !IsRetryable(err) {
			return result, err
		}

		delay := schedule.NextBackOff()
		logger.Warn("retrying after transient failure",
			logging.Attempt(attempt+1),
			slog.Duration(logging.KeyDelay, delay),
			logging.Err(err))
		if p.OnRetry != nil {
			p.OnRetry(ctx, name, attempt+1, err)
		}

		if serr := p.sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
	}
}

// DoErr is Do for operations without a result value.
func DoErr(ctx context.Context, p Policy, name string, op func(context.Context) error) error {
	_, err := Do(ctx, p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
