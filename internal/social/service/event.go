package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"go.uber.org/zap"
)

// EventService handles event lifecycle: creation with zeroed counters,
// creator-only deletion, and counter-verified reads.
type EventService struct {
	events     *models.EventModel
	stats      *models.StatsModel
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewEvent creates a new event service.
func NewEvent(events *models.EventModel, stats *models.StatsModel, reconciler *Reconciler, logger *zap.Logger) *EventService {
	return &EventService{
		events:     events,
		stats:      stats,
		reconciler: reconciler,
		logger:     logger.Named("event_service"),
	}
}

// CreateEvent validates and writes a new event, then refreshes the owning
// club's aggregate stats.
func (s *EventService) CreateEvent(ctx context.Context, event types.Event) (string, error) {
	if strings.TrimSpace(event.Title) == "" {
		return "", fmt.Errorf("event title is required: %w", ErrActionFailed)
	}

	if event.CreatorID == "" {
		return "", fmt.Errorf("event creator is required: %w", ErrActionFailed)
	}

	eventID, err := s.events.Create(ctx, event)
	if err != nil {
		return "", err
	}

	if event.ClubID != "" {
		if err := s.stats.Adjust(ctx, event.ClubID, map[string]int64{"totalEvents": 1, "totalInteractions": 1}); err != nil {
			s.logger.Warn("Club stats event adjustment failed",
				zap.String("clubId", event.ClubID), zap.Error(err))
		}

		if s.reconciler != nil {
			if _, err := s.reconciler.ForceRefreshClubStats(ctx, event.ClubID); err != nil {
				s.logger.Warn("Post-creation stats refresh failed",
					zap.String("clubId", event.ClubID), zap.Error(err))
			}
		}
	}

	return eventID, nil
}

// DeleteEvent removes an event. Only the creator may delete it.
func (s *EventService) DeleteEvent(ctx context.Context, eventID, actorID string) error {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}

	if event.CreatorID != actorID {
		return fmt.Errorf("actor %q: %w", actorID, ErrNotAuthorized)
	}

	if err := s.events.Delete(ctx, eventID); err != nil {
		return err
	}

	if event.ClubID != "" {
		if err := s.stats.Adjust(ctx, event.ClubID, map[string]int64{"totalEvents": -1, "totalInteractions": -1}); err != nil {
			s.logger.Warn("Club stats event adjustment failed",
				zap.String("clubId", event.ClubID), zap.Error(err))
		}
	}

	return nil
}

// GetEvent reads an event. Counters that read zero are re-verified against
// their membership sets before being trusted, guarding against stale zeros
// from torn writes.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (types.Event, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return types.Event{}, err
	}

	if s.reconciler == nil {
		return event, nil
	}

	ref := types.EventRef(eventID)

	if event.LikesCount == 0 {
		if value, err := s.reconciler.MaybeReconcile(ctx, ref, types.KindLike, event.LikesCount); err == nil {
			event.LikesCount = value
		}
	}

	if event.AttendeesCount == 0 {
		if value, err := s.reconciler.MaybeReconcile(ctx, ref, types.KindAttend, event.AttendeesCount); err == nil {
			event.AttendeesCount = value
		}
	}

	if event.CommentsCount == 0 {
		if value, err := s.reconciler.MaybeReconcile(ctx, ref, types.KindComment, event.CommentsCount); err == nil {
			event.CommentsCount = value
		}
	}

	return event, nil
}
