// Package docretry wraps document store transactions with conflict-classified
// retry. Only optimistic concurrency conflicts are retried; every other
// failure is surfaced immediately.
package docretry

import (
	"context"
	"fmt"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/cenkalti/backoff/v4"
)

// Options controls the retry schedule for conflicting transactions.
type Options struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxRetries      uint64
}

// DefaultOptions matches the toggle protocol: 100ms base delay, doubling,
// three attempts in total before the conflict escalates to the caller.
func DefaultOptions() Options {
	return Options{
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		MaxRetries:      2,
	}
}

// Transaction runs fn as a store transaction, retrying on conflict with
// exponential backoff. Non-conflict errors stop retrying immediately.
func Transaction(ctx context.Context, store docstore.Store, fn func(ctx context.Context, tx docstore.Tx) error, opts Options) error {
	var lastConflict error

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMultiplier(opts.Multiplier),
	), opts.MaxRetries)

	err := backoff.Retry(func() error {
		err := store.RunTransaction(ctx, fn)
		if err != nil {
			if !docstore.IsConflict(err) {
				// Not a concurrency race, so retrying cannot help.
				return backoff.Permanent(err)
			}

			lastConflict = err

			return err
		}

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if lastConflict != nil && docstore.IsConflict(err) {
			return fmt.Errorf("transaction failed after retries: %w", lastConflict)
		}

		return err
	}

	return nil
}

// Operation runs a non-transactional store operation with the same
// conflict-classified retry schedule.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error), opts Options) (T, error) {
	var result T

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMultiplier(opts.Multiplier),
	), opts.MaxRetries)

	err := backoff.Retry(func() error {
		var err error

		result, err = operation(ctx)
		if err != nil {
			if !docstore.IsConflict(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return result, fmt.Errorf("operation failed: %w", err)
	}

	return result, nil
}
