package service_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/service"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEnrichLiveProfileWins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.profiles.Put(ctx, types.Profile{
		ID:          "u1",
		DisplayName: "Ada Lovelace",
		AvatarURL:   "https://cdn.example/u1.png",
		University:  "Cambridge",
	}))

	enrich := service.NewEnrich(env.profiles, zaptest.NewLogger(t))

	display := enrich.Enrich(ctx, types.MembershipRecord{
		ActorID:    "u1",
		UserName:   "Old Name",
		UserAvatar: "https://cdn.example/stale.png",
		Body:       "great event",
	})

	assert.Equal(t, "Ada Lovelace", display.DisplayName)
	assert.Equal(t, "https://cdn.example/u1.png", display.AvatarURL)
	assert.Equal(t, "Cambridge", display.University)
	assert.Equal(t, "great event", display.Body)
}

func TestEnrichFallsBackToSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	enrich := service.NewEnrich(env.profiles, zaptest.NewLogger(t))

	// No profile document exists for the actor.
	display := enrich.Enrich(ctx, types.MembershipRecord{
		ActorID:    "ghost",
		UserName:   "Old Name",
		UserAvatar: "https://cdn.example/stale.png",
	})

	assert.Equal(t, "Old Name", display.DisplayName)
	assert.Equal(t, "https://cdn.example/stale.png", display.AvatarURL)
	assert.Empty(t, display.University)
}

func TestEnrichPartialProfileFillsGaps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// Live profile has a name but no avatar.
	require.NoError(t, env.profiles.Put(ctx, types.Profile{ID: "u1", DisplayName: "Ada"}))

	enrich := service.NewEnrich(env.profiles, zaptest.NewLogger(t))

	display := enrich.Enrich(ctx, types.MembershipRecord{
		ActorID:    "u1",
		UserName:   "Old Name",
		UserAvatar: "https://cdn.example/stale.png",
	})

	assert.Equal(t, "Ada", display.DisplayName)
	assert.Equal(t, "https://cdn.example/stale.png", display.AvatarURL)
}

// lookupCountingStore counts profile document reads.
type lookupCountingStore struct {
	docstore.Store

	gets atomic.Int64
}

func (s *lookupCountingStore) Get(ctx context.Context, path string) (docstore.Document, error) {
	if docstore.CollectionOf(path) == types.CollectionUsers {
		s.gets.Add(1)
	}

	return s.Store.Get(ctx, path)
}

func TestEnrichAllCachesLookupsPerActor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.profiles.Put(ctx, types.Profile{ID: "u1", DisplayName: "Ada"}))
	require.NoError(t, env.profiles.Put(ctx, types.Profile{ID: "u2", DisplayName: "Grace"}))

	store := &lookupCountingStore{Store: env.store}
	enrich := service.NewEnrich(models.NewProfile(store, zaptest.NewLogger(t)), zaptest.NewLogger(t))

	records := []types.MembershipRecord{
		{ActorID: "u1", Body: "first"},
		{ActorID: "u2"},
		{ActorID: "u1", Body: "second"},
		{ActorID: "u1", Body: "third"},
	}

	display := enrich.EnrichAll(ctx, records)
	require.Len(t, display, 4)
	assert.Equal(t, "Ada", display[0].DisplayName)
	assert.Equal(t, "Grace", display[1].DisplayName)
	assert.Equal(t, "Ada", display[2].DisplayName)
	assert.Equal(t, "second", display[2].Body)

	// One read per distinct actor.
	assert.Equal(t, int64(2), store.gets.Load())
}

func TestEnrichAllCachesMissesToo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	store := &lookupCountingStore{Store: env.store}
	enrich := service.NewEnrich(models.NewProfile(store, zaptest.NewLogger(t)), zaptest.NewLogger(t))

	records := []types.MembershipRecord{
		{ActorID: "ghost", UserName: "Old Name"},
		{ActorID: "ghost", UserName: "Old Name"},
	}

	display := enrich.EnrichAll(ctx, records)
	require.Len(t, display, 2)
	assert.Equal(t, "Old Name", display[0].DisplayName)
	assert.Equal(t, int64(1), store.gets.Load())
}
