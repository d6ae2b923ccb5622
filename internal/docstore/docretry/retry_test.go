package docretry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/docretry"
	"github.com/campushub/clubsync/internal/docstore/memdoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fastOptions keeps retry schedules instant for tests.
func fastOptions() docretry.Options {
	return docretry.Options{
		InitialInterval: 1,
		Multiplier:      1,
		MaxRetries:      2,
	}
}

// flakyStore wraps a real store and fails RunTransaction with the configured
// error until the remaining failure budget is spent.
type flakyStore struct {
	docstore.Store

	failures int
	err      error
	attempts int
}

func (s *flakyStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	s.attempts++

	if s.failures > 0 {
		s.failures--
		return s.err
	}

	return s.Store.RunTransaction(ctx, fn)
}

func TestTransactionRetriesConflicts(t *testing.T) {
	t.Parallel()

	store := &flakyStore{
		Store:    memdoc.New(zaptest.NewLogger(t)),
		failures: 2,
		err:      docstore.ErrConflict,
	}

	err := docretry.Transaction(context.Background(), store, func(_ context.Context, tx docstore.Tx) error {
		tx.Set("events/e1", docstore.Fields{"title": "retry me"})
		return nil
	}, fastOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, store.attempts)

	doc, err := store.Get(context.Background(), "events/e1")
	require.NoError(t, err)
	assert.Equal(t, "retry me", doc.String("title"))
}

func TestTransactionExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	store := &flakyStore{
		Store:    memdoc.New(zaptest.NewLogger(t)),
		failures: 10,
		err:      docstore.ErrConflict,
	}

	err := docretry.Transaction(context.Background(), store, func(_ context.Context, _ docstore.Tx) error {
		return nil
	}, fastOptions())
	require.Error(t, err)
	assert.True(t, docstore.IsConflict(err))
	// One initial attempt plus MaxRetries.
	assert.Equal(t, 3, store.attempts)
}

func TestTransactionDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	store := &flakyStore{
		Store:    memdoc.New(zaptest.NewLogger(t)),
		failures: 10,
		err:      docstore.ErrNotFound,
	}

	err := docretry.Transaction(context.Background(), store, func(_ context.Context, _ docstore.Tx) error {
		return nil
	}, fastOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Equal(t, 1, store.attempts)
}

func TestTransactionPropagatesCallbackError(t *testing.T) {
	t.Parallel()

	store := memdoc.New(zaptest.NewLogger(t))
	sentinel := errors.New("validation failed")

	err := docretry.Transaction(context.Background(), store, func(_ context.Context, _ docstore.Tx) error {
		return sentinel
	}, fastOptions())
	assert.ErrorIs(t, err, sentinel)
}

func TestOperationRetriesConflicts(t *testing.T) {
	t.Parallel()

	attempts := 0

	result, err := docretry.Operation(context.Background(), func(_ context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, docstore.ErrConflict
		}

		return 42, nil
	}, fastOptions())
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}
