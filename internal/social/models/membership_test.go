package models_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campushub/clubsync/internal/docstore/memdoc"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newLikeSet(t *testing.T) *models.MembershipSet {
	t.Helper()

	store := memdoc.New(zaptest.NewLogger(t))

	return models.NewMembershipSet(store, types.EventRef("e1"), types.KindLike, zaptest.NewLogger(t))
}

func TestAddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	set := newLikeSet(t)
	ctx := context.Background()

	id, err := set.Add(ctx, types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	dupID, err := set.Add(ctx, types.MembershipRecord{ActorID: "u1"})
	assert.ErrorIs(t, err, models.ErrDuplicateMember)
	assert.Equal(t, id, dupID)

	count, err := set.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAppendAllowsMultiplePerActor(t *testing.T) {
	t.Parallel()

	store := memdoc.New(zaptest.NewLogger(t))
	set := models.NewMembershipSet(store, types.EventRef("e1"), types.KindComment, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := set.Append(ctx, types.MembershipRecord{ActorID: "u1", Body: "first"})
	require.NoError(t, err)

	_, err = set.Append(ctx, types.MembershipRecord{ActorID: "u1", Body: "second"})
	require.NoError(t, err)

	count, err := set.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	actors, err := set.ActorIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, actors)
}

func TestRemoveDeletesAllMatches(t *testing.T) {
	t.Parallel()

	set := newLikeSet(t)
	ctx := context.Background()

	// Seed duplicate records directly to simulate drift.
	_, err := set.Append(ctx, types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)
	_, err = set.Append(ctx, types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)

	require.NoError(t, set.Remove(ctx, "u1"))

	count, err := set.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	assert.ErrorIs(t, set.Remove(ctx, "u1"), models.ErrNotAMember)
}

func TestContainsAndCount(t *testing.T) {
	t.Parallel()

	set := newLikeSet(t)
	ctx := context.Background()

	ok, err := set.Contains(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = set.Add(ctx, types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)
	_, err = set.Add(ctx, types.MembershipRecord{ActorID: "u2"})
	require.NoError(t, err)

	ok, err = set.Contains(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := set.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	set := newLikeSet(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, actor := range []string{"u1", "u2", "u3"} {
		_, err := set.Add(ctx, types.MembershipRecord{
			ActorID:   actor,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	records, err := set.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "u3", records[0].ActorID)
	assert.Equal(t, "u2", records[1].ActorID)
}

func TestSubscribeDeliversMembershipSnapshots(t *testing.T) {
	t.Parallel()

	set := newLikeSet(t)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		last []types.MembershipRecord
	)

	cancel, err := set.Subscribe(func(records []types.MembershipRecord) {
		mu.Lock()
		last = records
		mu.Unlock()
	})
	require.NoError(t, err)

	defer cancel()

	_, err = set.Add(ctx, types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(last) == 1 && last[0].ActorID == "u1"
	}, time.Second, 5*time.Millisecond)
}
