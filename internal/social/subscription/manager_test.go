package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/memdoc"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/subscription"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSubscribeToMembershipDeliversSnapshots(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := memdoc.New(logger)
	manager := subscription.NewManager(store, logger)

	event := types.EventRef("e1")

	var (
		mu     sync.Mutex
		latest []types.MembershipRecord
	)

	handle, err := manager.SubscribeToMembership(event, types.KindLike, func(records []types.MembershipRecord) {
		mu.Lock()
		latest = records
		mu.Unlock()
	})
	require.NoError(t, err)
	defer handle.Close()

	set := models.NewMembershipSet(store, event, types.KindLike, logger)
	_, err = set.Add(context.Background(), types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(latest) == 1 && latest[0].ActorID == "u1"
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeToCounterDeliversValues(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := memdoc.New(logger)
	manager := subscription.NewManager(store, logger)

	event := types.EventRef("e1")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, event.Path(), docstore.Fields{"likesCount": int64(0)}))

	var (
		mu     sync.Mutex
		latest int64
	)

	handle, err := manager.SubscribeToCounter(event, "likesCount", func(value int64) {
		mu.Lock()
		latest = value
		mu.Unlock()
	})
	require.NoError(t, err)
	defer handle.Close()

	require.NoError(t, store.Update(ctx, event.Path(), docstore.Fields{"likesCount": docstore.Increment(3)}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return latest == 3
	}, time.Second, 5*time.Millisecond)
}

func TestHandleCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := memdoc.New(logger)
	manager := subscription.NewManager(store, logger)

	handle, err := manager.SubscribeToMembership(types.EventRef("e1"), types.KindLike, func([]types.MembershipRecord) {})
	require.NoError(t, err)
	assert.Equal(t, 1, manager.Active())

	handle.Close()
	assert.Equal(t, 0, manager.Active())

	handle.Close()
	assert.Equal(t, 0, manager.Active())
}

func TestCloseAllRejectsNewSubscriptions(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := memdoc.New(logger)
	manager := subscription.NewManager(store, logger)

	_, err := manager.SubscribeToMembership(types.EventRef("e1"), types.KindLike, func([]types.MembershipRecord) {})
	require.NoError(t, err)

	_, err = manager.SubscribeToCounter(types.EventRef("e1"), "likesCount", func(int64) {})
	require.NoError(t, err)
	assert.Equal(t, 2, manager.Active())

	manager.CloseAll()
	assert.Equal(t, 0, manager.Active())

	_, err = manager.SubscribeToMembership(types.EventRef("e1"), types.KindLike, func([]types.MembershipRecord) {})
	assert.ErrorIs(t, err, subscription.ErrManagerClosed)
}

func TestClosedSubscriptionStopsDelivering(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := memdoc.New(logger)
	manager := subscription.NewManager(store, logger)

	event := types.EventRef("e1")
	ctx := context.Background()

	var calls sync.Map

	handle, err := manager.SubscribeToMembership(event, types.KindLike, func(records []types.MembershipRecord) {
		calls.Store(len(records), struct{}{})
	})
	require.NoError(t, err)

	handle.Close()

	set := models.NewMembershipSet(store, event, types.KindLike, logger)
	_, err = set.Add(ctx, types.MembershipRecord{ActorID: "u1"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, delivered := calls.Load(1)
	assert.False(t, delivered)
}
