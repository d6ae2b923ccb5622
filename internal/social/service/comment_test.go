package service_test

import (
	"context"
	"testing"

	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/service"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func (e *testEnv) newComment(t *testing.T) *service.CommentService {
	t.Helper()

	return service.NewComment(
		e.store, e.events, e.profiles, e.stats,
		e.reconciler, e.fanout, zaptest.NewLogger(t),
	)
}

func TestSubmitComment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.newComment(t)

	env.seedClub(t, ctx, "c1", "owner")
	eventID := env.seedEvent(t, ctx, "c1", "Launch Party")
	event := types.EventRef(eventID)

	require.NoError(t, env.profiles.Put(ctx, types.Profile{ID: "u1", DisplayName: "Ada"}))

	commentID, err := svc.SubmitComment(ctx, "u1", eventID, "  looking forward to it  ")
	require.NoError(t, err)
	require.NotEmpty(t, commentID)

	comments, err := svc.ListComments(ctx, eventID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "u1", comments[0].ActorID)
	assert.Equal(t, "looking forward to it", comments[0].Body)
	assert.Equal(t, "Ada", comments[0].UserName)

	assert.Equal(t, int64(1), env.counter(t, ctx, event, types.KindComment))

	stats, err := env.stats.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalComments)

	records := env.inbox(t, ctx, "c1")
	require.Len(t, records, 1)
	assert.Equal(t, types.NotifyEventCommented, records[0].Type)
}

func TestSubmitCommentRejectsEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.newComment(t)

	eventID := env.seedEvent(t, ctx, "c1", "Launch Party")

	_, err := svc.SubmitComment(ctx, "u1", eventID, "   ")
	assert.ErrorIs(t, err, service.ErrEmptyComment)

	assert.Equal(t, int64(0), env.counter(t, ctx, types.EventRef(eventID), types.KindComment))
}

func TestSubmitCommentUnknownEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := env.newComment(t)

	_, err := svc.SubmitComment(context.Background(), "u1", "missing", "hello")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestSubmitCommentAllowsRepeatsByOneActor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.newComment(t)

	eventID := env.seedEvent(t, ctx, "c1", "Launch Party")

	first, err := svc.SubmitComment(ctx, "u1", eventID, "first")
	require.NoError(t, err)

	second, err := svc.SubmitComment(ctx, "u1", eventID, "second")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.Equal(t, int64(2), env.counter(t, ctx, types.EventRef(eventID), types.KindComment))
}

func TestSubmitCommentFansOutToEngagedUsers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.newComment(t)

	eventID := env.seedEvent(t, ctx, "c1", "Launch Party")
	event := types.EventRef(eventID)

	likers := models.NewMembershipSet(env.store, event, types.KindLike, zaptest.NewLogger(t))
	_, err := likers.Add(ctx, types.MembershipRecord{ActorID: "u2"})
	require.NoError(t, err)

	attendees := models.NewMembershipSet(env.store, event, types.KindAttend, zaptest.NewLogger(t))
	_, err = attendees.Add(ctx, types.MembershipRecord{ActorID: "u3"})
	require.NoError(t, err)

	_, err = svc.SubmitComment(ctx, "u1", eventID, "see you there")
	require.NoError(t, err)

	u2 := env.inbox(t, ctx, "u2")
	require.Len(t, u2, 1)
	assert.Equal(t, types.NotifyCommentOnLiked, u2[0].Type)

	u3 := env.inbox(t, ctx, "u3")
	require.Len(t, u3, 1)
	assert.Equal(t, types.NotifyCommentOnJoined, u3[0].Type)

	assert.Empty(t, env.inbox(t, ctx, "u1"))
}

func TestDeleteCommentAuthorOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.newComment(t)

	eventID := env.seedEvent(t, ctx, "c1", "Launch Party")
	event := types.EventRef(eventID)

	commentID, err := svc.SubmitComment(ctx, "u1", eventID, "hello")
	require.NoError(t, err)

	err = svc.DeleteComment(ctx, commentID, "u2", eventID)
	assert.ErrorIs(t, err, service.ErrNotAuthorized)
	assert.Equal(t, int64(1), env.counter(t, ctx, event, types.KindComment))

	require.NoError(t, svc.DeleteComment(ctx, commentID, "u1", eventID))
	assert.Equal(t, int64(0), env.counter(t, ctx, event, types.KindComment))

	comments, err := svc.ListComments(ctx, eventID, 0)
	require.NoError(t, err)
	assert.Empty(t, comments)

	// Deleting again is a no-op.
	require.NoError(t, svc.DeleteComment(ctx, commentID, "u1", eventID))
}

func TestDeleteCommentClampsCounterAtZero(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.newComment(t)

	eventID := env.seedEvent(t, ctx, "c1", "Launch Party")
	event := types.EventRef(eventID)

	commentID, err := svc.SubmitComment(ctx, "u1", eventID, "hello")
	require.NoError(t, err)

	// Simulate drift: the counter already reads zero.
	env.setCounter(t, ctx, event, types.KindComment, 0)

	require.NoError(t, svc.DeleteComment(ctx, commentID, "u1", eventID))
	assert.Equal(t, int64(0), env.counter(t, ctx, event, types.KindComment))
}
