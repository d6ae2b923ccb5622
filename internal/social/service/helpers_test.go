package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/docretry"
	"github.com/campushub/clubsync/internal/docstore/memdoc"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/service"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testEnv bundles a fresh in-memory store with the full model and service
// stack used across the service tests.
type testEnv struct {
	store         *memdoc.Store
	events        *models.EventModel
	clubs         *models.ClubModel
	profiles      *models.ProfileModel
	requests      *models.RequestModel
	notifications *models.NotificationModel
	stats         *models.StatsModel
	reconciler    *service.Reconciler
	fanout        *service.FanoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := memdoc.New(logger)

	events := models.NewEvent(store, logger)
	stats := models.NewStats(store, logger)
	profiles := models.NewProfile(store, logger)
	notifications := models.NewNotification(store, logger)

	reconciler := service.NewReconciler(store, events, stats, logger)

	return &testEnv{
		store:         store,
		events:        events,
		clubs:         models.NewClub(store, logger),
		profiles:      profiles,
		requests:      models.NewRequest(store, logger),
		notifications: notifications,
		stats:         stats,
		reconciler:    reconciler,
		fanout:        service.NewFanout(notifications, profiles, logger),
	}
}

// fastRetry keeps retry schedules instant for tests.
func fastRetry() docretry.Options {
	return docretry.Options{InitialInterval: time.Millisecond, Multiplier: 1, MaxRetries: 2}
}

// newToggle builds a toggle service without debounce so tests can toggle the
// same actor repeatedly.
func (e *testEnv) newToggle(t *testing.T) *service.ToggleService {
	t.Helper()

	return service.NewToggle(
		e.store, e.profiles, e.stats, e.reconciler, e.fanout, fastRetry(), 0, zaptest.NewLogger(t),
	)
}

// seedEvent writes an event owned by clubID and returns its ID.
func (e *testEnv) seedEvent(t *testing.T, ctx context.Context, clubID, title string) string {
	t.Helper()

	eventID, err := e.events.Create(ctx, types.Event{
		ClubID:    clubID,
		CreatorID: "creator",
		Title:     title,
	})
	require.NoError(t, err)

	return eventID
}

// seedClub writes a club document and returns its reference.
func (e *testEnv) seedClub(t *testing.T, ctx context.Context, clubID, ownerID string) types.EntityRef {
	t.Helper()

	require.NoError(t, e.clubs.Create(ctx, models.Club{ID: clubID, Name: "Chess Club", OwnerID: ownerID}))

	return types.ClubRef(clubID)
}

// inbox returns all notifications currently addressed to the recipient.
func (e *testEnv) inbox(t *testing.T, ctx context.Context, recipientID string) []types.NotificationRecord {
	t.Helper()

	records, err := e.notifications.ListInbox(ctx, recipientID, 0)
	require.NoError(t, err)

	return records
}

// counter reads one counter field straight off the entity document.
func (e *testEnv) counter(t *testing.T, ctx context.Context, entity types.EntityRef, kind types.Kind) int64 {
	t.Helper()

	doc, err := e.store.Get(ctx, entity.Path())
	require.NoError(t, err)

	return doc.Int(kind.Counter())
}

// setCounter overwrites one counter field to simulate drift.
func (e *testEnv) setCounter(t *testing.T, ctx context.Context, entity types.EntityRef, kind types.Kind, value int64) {
	t.Helper()

	require.NoError(t, e.store.Update(ctx, entity.Path(), docstore.Fields{kind.Counter(): value}))
}
