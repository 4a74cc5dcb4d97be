package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/metrics"
)

// Clock returns the current time
type Clock func() time.Time

// SystemClock is UTC wall time truncated to what Postgres timestamps keep
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

const (
	defaultMaxRetries = 5
	defaultBackoff    = 10 * time.Millisecond
)

// Option tunes a service
type Option func(*base)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(b *base) { b.now = c }
}

// WithMaxRetries sets how many times a conflicting transaction is retried
func WithMaxRetries(n int) Option {
	return func(b *base) {
		if n >= 0 {
			b.runner.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay between conflict retries
func WithBackoff(d time.Duration) Option {
	return func(b *base) { b.runner.backoff = d }
}

// base holds what every service shares
type base struct {
	store  repositories.Store
	now    Clock
	runner txRunner
}

func newBase(store repositories.Store, opts ...Option) base {
	b := base{
		store: store,
		now:   SystemClock,
		runner: txRunner{
			store:      store,
			maxRetries: defaultMaxRetries,
			backoff:    defaultBackoff,
		},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// txRunner runs read-validate-write cycles, retrying lost compare-and-sets
type txRunner struct {
	store      repositories.Store
	maxRetries int
	backoff    time.Duration
}

// run executes fn in a transaction. fn must reset anything it captured, it may run more than once.
func (r txRunner) run(ctx context.Context, op string, fn func(tx repositories.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, jitter(r.backoff, attempt)); err != nil {
				return err
			}
		}

		err := r.store.WithinTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrConflict) {
			return err
		}

		lastErr = err
		metrics.RecordConflict(op)
		log.Debug().Str("op", op).Int("attempt", attempt+1).Err(err).Msg("transaction conflict, retrying")
	}

	metrics.RecordRetriesExhausted(op)
	log.Warn().Str("op", op).Int("retries", r.maxRetries).Msg("⚠️ transaction retries exhausted")
	return fmt.Errorf("%s: %w: %w", op, ErrRetriesExhausted, lastErr)
}

// jitter grows the delay linearly with the attempt and spreads it by up to 50%
func jitter(d time.Duration, attempt int) time.Duration {
	if d <= 0 {
		return 0
	}
	step := d * time.Duration(attempt)
	return step/2 + time.Duration(rand.Int64N(int64(step)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
