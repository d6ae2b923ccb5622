package service

import (
	"context"
	"fmt"

	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// EngagementNotice describes one completed toggle for notification purposes.
type EngagementNotice struct {
	ActorID    string
	ActorName  string
	Kind       types.Kind
	Engaged    bool
	EventID    string
	EventTitle string
	ClubID     string
}

// FanoutService resolves the recipient set for an action and writes one
// notification record per recipient. Everything here is fire-and-forget:
// failures are logged and never propagate to the action that triggered the
// fanout, and partial delivery is acceptable.
type FanoutService struct {
	notifications *models.NotificationModel
	profiles      *models.ProfileModel
	logger        *zap.Logger
}

// NewFanout creates a new notification fanout service.
func NewFanout(notifications *models.NotificationModel, profiles *models.ProfileModel, logger *zap.Logger) *FanoutService {
	return &FanoutService{
		notifications: notifications,
		profiles:      profiles,
		logger:        logger.Named("fanout_service"),
	}
}

// NotifyEngagement informs the owning club that an actor engaged with or
// disengaged from one of its events.
func (s *FanoutService) NotifyEngagement(ctx context.Context, notice EngagementNotice) {
	if notice.ClubID == "" {
		return
	}

	actorName := s.actorName(ctx, notice.ActorID, notice.ActorName)

	var notifyType, title, message string

	switch {
	case notice.Kind == types.KindLike && notice.Engaged:
		notifyType = types.NotifyEventLiked
		title = "Event liked"
		message = fmt.Sprintf("%s liked your event %q", actorName, notice.EventTitle)
	case notice.Kind == types.KindLike && !notice.Engaged:
		notifyType = types.NotifyEventUnliked
		title = "Like removed"
		message = fmt.Sprintf("%s removed their like from %q", actorName, notice.EventTitle)
	case notice.Kind == types.KindAttend && notice.Engaged:
		notifyType = types.NotifyEventJoined
		title = "New attendee"
		message = fmt.Sprintf("%s joined your event %q", actorName, notice.EventTitle)
	case notice.Kind == types.KindAttend && !notice.Engaged:
		notifyType = types.NotifyEventLeft
		title = "Attendee left"
		message = fmt.Sprintf("%s left your event %q", actorName, notice.EventTitle)
	default:
		return
	}

	s.write(ctx, types.NotificationRecord{
		RecipientID:   notice.ClubID,
		RecipientType: types.RecipientClub,
		SenderID:      notice.ActorID,
		Type:          notifyType,
		Category:      types.CategoryEvents,
		Title:         title,
		Message:       message,
		EventID:       notice.EventID,
		ClubID:        notice.ClubID,
	})
}

// NotifyComment fans a new comment out to the owning club and to every other
// actor who previously liked or attended the event. Recipients appearing in
// both source sets receive a single notification; the commenter never
// receives one.
func (s *FanoutService) NotifyComment(ctx context.Context, commenterID string, event types.Event, likerIDs, attendeeIDs []string) {
	commenterName := s.actorName(ctx, commenterID, "")

	records := []types.NotificationRecord{{
		RecipientID:   event.ClubID,
		RecipientType: types.RecipientClub,
		SenderID:      commenterID,
		Type:          types.NotifyEventCommented,
		Category:      types.CategoryEvents,
		Title:         "New comment",
		Message:       fmt.Sprintf("%s commented on your event %q", commenterName, event.Title),
		EventID:       event.ID,
		ClubID:        event.ClubID,
	}}

	seen := map[string]struct{}{commenterID: {}, event.ClubID: {}}

	for _, likerID := range likerIDs {
		if _, ok := seen[likerID]; ok {
			continue
		}

		seen[likerID] = struct{}{}
		records = append(records, types.NotificationRecord{
			RecipientID:   likerID,
			RecipientType: types.RecipientStudent,
			SenderID:      commenterID,
			Type:          types.NotifyCommentOnLiked,
			Category:      types.CategorySocial,
			Title:         "New comment on a liked event",
			Message:       fmt.Sprintf("%s commented on %q, an event you liked", commenterName, event.Title),
			EventID:       event.ID,
			ClubID:        event.ClubID,
		})
	}

	for _, attendeeID := range attendeeIDs {
		if _, ok := seen[attendeeID]; ok {
			continue
		}

		seen[attendeeID] = struct{}{}
		records = append(records, types.NotificationRecord{
			RecipientID:   attendeeID,
			RecipientType: types.RecipientStudent,
			SenderID:      commenterID,
			Type:          types.NotifyCommentOnJoined,
			Category:      types.CategorySocial,
			Title:         "New comment on a joined event",
			Message:       fmt.Sprintf("%s commented on %q, an event you joined", commenterName, event.Title),
			EventID:       event.ID,
			ClubID:        event.ClubID,
		})
	}

	s.writeAll(ctx, records)
}

// NotifyMembershipRequested informs the club about a new membership request.
func (s *FanoutService) NotifyMembershipRequested(ctx context.Context, request types.MembershipRequest) {
	requesterName := s.actorName(ctx, request.UserID, request.UserName)

	s.write(ctx, types.NotificationRecord{
		RecipientID:   request.ClubID,
		RecipientType: types.RecipientClub,
		SenderID:      request.UserID,
		Type:          types.NotifyMembershipRequest,
		Category:      types.CategoryMembership,
		Title:         "Membership request",
		Message:       fmt.Sprintf("%s requested to join your club", requesterName),
		ClubID:        request.ClubID,
	})
}

// NotifyMembershipDecided informs the requesting user about the decision.
func (s *FanoutService) NotifyMembershipDecided(ctx context.Context, request types.MembershipRequest, approved bool, clubName string) {
	notifyType := types.NotifyMembershipRejected
	title := "Membership rejected"
	message := fmt.Sprintf("Your request to join %s was rejected", clubName)

	if approved {
		notifyType = types.NotifyMembershipApproved
		title = "Membership approved"
		message = fmt.Sprintf("Your request to join %s was approved", clubName)
	}

	s.write(ctx, types.NotificationRecord{
		RecipientID:   request.UserID,
		RecipientType: types.RecipientStudent,
		SenderID:      request.ClubID,
		Type:          notifyType,
		Category:      types.CategoryMembership,
		Title:         title,
		Message:       message,
		ClubID:        request.ClubID,
	})
}

// NotifyMemberRemoved informs a user they were removed from a club.
func (s *FanoutService) NotifyMemberRemoved(ctx context.Context, userID, clubID, clubName string) {
	s.write(ctx, types.NotificationRecord{
		RecipientID:   userID,
		RecipientType: types.RecipientStudent,
		SenderID:      clubID,
		Type:          types.NotifyMembershipRemoved,
		Category:      types.CategoryMembership,
		Title:         "Membership removed",
		Message:       fmt.Sprintf("You were removed from %s", clubName),
		ClubID:        clubID,
	})
}

func (s *FanoutService) write(ctx context.Context, record types.NotificationRecord) {
	if _, err := s.notifications.Create(ctx, record); err != nil {
		s.logger.Warn("Notification delivery failed",
			zap.String("recipientId", record.RecipientID),
			zap.String("type", record.Type),
			zap.Error(err))
	}
}

// writeAll delivers N independent writes. A failed write is logged and does
// not stop the others.
func (s *FanoutService) writeAll(ctx context.Context, records []types.NotificationRecord) {
	p := pool.New().WithContext(ctx)

	for _, record := range records {
		record := record
		p.Go(func(ctx context.Context) error {
			s.write(ctx, record)
			return nil
		})
	}

	// Writes never return errors upward; Wait only joins the goroutines.
	_ = p.Wait()
}

func (s *FanoutService) actorName(ctx context.Context, actorID, fallback string) string {
	profile, err := s.profiles.Get(ctx, actorID)
	if err == nil && profile.DisplayName != "" {
		return profile.DisplayName
	}

	if fallback != "" {
		return fallback
	}

	return "A student"
}
