package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/docretry"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"go.uber.org/zap"
)

// CommentService handles comment submission and deletion on events.
// Comments share the membership set machinery but are not unique per actor:
// a user may comment many times, and every comment counts.
type CommentService struct {
	store      docstore.Store
	events     *models.EventModel
	profiles   *models.ProfileModel
	stats      *models.StatsModel
	reconciler *Reconciler
	fanout     *FanoutService
	logger     *zap.Logger
}

// NewComment creates a new comment service.
func NewComment(
	store docstore.Store, events *models.EventModel, profiles *models.ProfileModel,
	stats *models.StatsModel, reconciler *Reconciler, fanout *FanoutService, logger *zap.Logger,
) *CommentService {
	return &CommentService{
		store:      store,
		events:     events,
		profiles:   profiles,
		stats:      stats,
		reconciler: reconciler,
		fanout:     fanout,
		logger:     logger.Named("comment_service"),
	}
}

// SubmitComment appends a comment record, bumps the event's comment counter,
// and fans the comment out to the owning club and to the event's prior
// likers and attendees.
func (s *CommentService) SubmitComment(ctx context.Context, actorID, eventID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyComment
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return "", err
	}

	profile, err := s.profiles.Get(ctx, actorID)
	if err != nil && !errors.Is(err, models.ErrProfileNotFound) {
		s.logger.Warn("Commenter profile lookup failed",
			zap.String("actorId", actorID), zap.Error(err))
	}

	commentSet := models.NewMembershipSet(s.store, types.EventRef(eventID), types.KindComment, s.logger)

	commentID, err := commentSet.Append(ctx, types.MembershipRecord{
		ActorID:        actorID,
		UserName:       profile.DisplayName,
		UserAvatar:     profile.AvatarURL,
		UserUniversity: profile.University,
		Body:           text,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return "", err
	}

	err = s.store.Update(ctx, types.EventRef(eventID).Path(),
		docstore.Fields{"commentsCount": docstore.Increment(1)})
	if err != nil {
		return "", fmt.Errorf("failed to bump comment counter: %w", err)
	}

	// Best-effort follow-ups; the comment itself is already committed.
	if s.stats != nil && event.ClubID != "" {
		err := s.stats.Adjust(ctx, event.ClubID, map[string]int64{"totalComments": 1, "totalInteractions": 1})
		if err != nil {
			s.logger.Warn("Club stats comment adjustment failed",
				zap.String("clubId", event.ClubID), zap.Error(err))
		}
	}

	if s.fanout != nil {
		likeSet := models.NewMembershipSet(s.store, types.EventRef(eventID), types.KindLike, s.logger)
		attendSet := models.NewMembershipSet(s.store, types.EventRef(eventID), types.KindAttend, s.logger)

		likerIDs, err := likeSet.ActorIDs(ctx)
		if err != nil {
			s.logger.Warn("Failed to resolve likers for fanout", zap.Error(err))
		}

		attendeeIDs, err := attendSet.ActorIDs(ctx)
		if err != nil {
			s.logger.Warn("Failed to resolve attendees for fanout", zap.Error(err))
		}

		s.fanout.NotifyComment(ctx, actorID, event, likerIDs, attendeeIDs)
	}

	return commentID, nil
}

// DeleteComment removes the actor's own comment and decrements the event's
// comment counter, clamped at zero. Deleting someone else's comment fails
// with ErrNotAuthorized.
func (s *CommentService) DeleteComment(ctx context.Context, commentID, actorID, eventID string) error {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}

	commentPath := docstore.JoinPath(types.EventRef(eventID).SubcollectionPath(types.KindComment), commentID)

	doc, err := s.store.Get(ctx, commentPath)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// Already gone; idempotent at the call site.
			return nil
		}

		return fmt.Errorf("failed to read comment: %w", err)
	}

	if doc.String("userId") != actorID {
		return fmt.Errorf("comment %q: %w", commentID, ErrNotAuthorized)
	}

	err = docretry.Transaction(ctx, s.store, func(_ context.Context, tx docstore.Tx) error {
		eventDoc, err := tx.Get(types.EventRef(eventID).Path())
		if err != nil {
			return err
		}

		next := eventDoc.Int("commentsCount") - 1
		if next < 0 {
			next = 0
		}

		tx.Delete(commentPath)
		tx.Update(types.EventRef(eventID).Path(), docstore.Fields{"commentsCount": next})

		return nil
	}, docretry.DefaultOptions())
	if err != nil {
		if docstore.IsConflict(err) {
			return fmt.Errorf("%w: %w", ErrActionFailed, err)
		}

		return err
	}

	if s.stats != nil && event.ClubID != "" {
		err := s.stats.Adjust(ctx, event.ClubID, map[string]int64{"totalComments": -1, "totalInteractions": -1})
		if err != nil {
			s.logger.Warn("Club stats comment adjustment failed",
				zap.String("clubId", event.ClubID), zap.Error(err))
		}
	}

	if s.reconciler != nil {
		if _, err := s.reconciler.ReconcileOne(ctx, types.EventRef(eventID), types.KindComment); err != nil {
			s.logger.Warn("Post-delete reconciliation failed",
				zap.String("eventId", eventID), zap.Error(err))
		}
	}

	return nil
}

// ListComments returns the event's comments newest-first, capped for display.
func (s *CommentService) ListComments(ctx context.Context, eventID string, limit int) ([]types.MembershipRecord, error) {
	commentSet := models.NewMembershipSet(s.store, types.EventRef(eventID), types.KindComment, s.logger)
	return commentSet.List(ctx, limit)
}
