package redisdoc_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/redisdoc"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTest(t *testing.T) *redisdoc.Store {
	t.Helper()
	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Create Redis client
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	store := redisdoc.New(client, zaptest.NewLogger(t))

	t.Cleanup(func() {
		store.Close()
		client.Close()
		mr.Close()
	})

	return store
}

func TestSetGetDelete(t *testing.T) {
	t.Parallel()

	store := setupTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "events/e1", docstore.Fields{"title": "Launch", "likesCount": int64(2)}))

	doc, err := store.Get(ctx, "events/e1")
	require.NoError(t, err)
	assert.Equal(t, "Launch", doc.String("title"))
	assert.Equal(t, int64(2), doc.Int("likesCount"))
	assert.Equal(t, int64(1), doc.Version)

	require.NoError(t, store.Delete(ctx, "events/e1"))

	_, err = store.Get(ctx, "events/e1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateResolvesIncrements(t *testing.T) {
	t.Parallel()

	store := setupTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "events/e1", docstore.Fields{"likesCount": int64(3)}))
	require.NoError(t, store.Update(ctx, "events/e1", docstore.Fields{"likesCount": docstore.Increment(2)}))

	doc, err := store.Get(ctx, "events/e1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Int("likesCount"))

	err = store.Update(ctx, "events/missing", docstore.Fields{"likesCount": docstore.Increment(1)})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestQueryFiltersAndOrder(t *testing.T) {
	t.Parallel()

	store := setupTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "events/e1/likes/a", docstore.Fields{"userId": "u1", "createdAt": "2026-01-01T00:00:00Z"}))
	require.NoError(t, store.Set(ctx, "events/e1/likes/b", docstore.Fields{"userId": "u2", "createdAt": "2026-01-02T00:00:00Z"}))

	docs, err := store.Query(ctx, docstore.Query{Collection: "events/e1/likes"}.Where("userId", "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "events/e1/likes/a", docs[0].Path)

	docs, err = store.Query(ctx, docstore.Query{
		Collection: "events/e1/likes",
		OrderBy:    "createdAt",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "events/e1/likes/b", docs[0].Path)
}

func TestApplyBatch(t *testing.T) {
	t.Parallel()

	store := setupTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "clubs/c1", docstore.Fields{"memberCount": int64(0)}))

	err := store.ApplyBatch(ctx, []docstore.Write{
		{Kind: docstore.WriteSet, Path: "clubs/c1/members/m1", Fields: docstore.Fields{"userId": "u1"}},
		{Kind: docstore.WriteUpdate, Path: "clubs/c1", Fields: docstore.Fields{"memberCount": docstore.Increment(1)}},
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "clubs/c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int("memberCount"))
}

func TestTransactionConflictOnChangedDocument(t *testing.T) {
	t.Parallel()

	store := setupTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "events/e1", docstore.Fields{"likesCount": int64(1)}))

	err := store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		doc, err := tx.Get("events/e1")
		if err != nil {
			return err
		}

		// A concurrent writer lands between the read and the commit.
		require.NoError(t, store.Update(ctx, "events/e1", docstore.Fields{"likesCount": int64(7)}))

		tx.Update("events/e1", docstore.Fields{"likesCount": doc.Int("likesCount") + 1})

		return nil
	})
	require.Error(t, err)
	assert.True(t, docstore.IsConflict(err))

	doc, err := store.Get(ctx, "events/e1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.Int("likesCount"))
}

func TestTransactionCommitsStagedWrites(t *testing.T) {
	t.Parallel()

	store := setupTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "events/e1", docstore.Fields{"likesCount": int64(0)}))

	err := store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		doc, err := tx.Get("events/e1")
		if err != nil {
			return err
		}

		tx.Set("events/e1/likes/a", docstore.Fields{"userId": "u1"})
		tx.Update("events/e1", docstore.Fields{"likesCount": doc.Int("likesCount") + 1})

		return nil
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "events/e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int("likesCount"))

	_, err = store.Get(ctx, "events/e1/likes/a")
	assert.NoError(t, err)
}
