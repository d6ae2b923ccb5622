package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Decision is a club's verdict on a membership request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// MembershipService implements the club join workflow: request, decide,
// cancel, remove. An approved request atomically creates the member record
// and bumps the club's member counter in one batch.
type MembershipService struct {
	store      docstore.Store
	clubs      *models.ClubModel
	requests   *models.RequestModel
	profiles   *models.ProfileModel
	stats      *models.StatsModel
	reconciler *Reconciler
	fanout     *FanoutService
	logger     *zap.Logger
}

// NewMembership creates a new membership service.
func NewMembership(
	store docstore.Store, clubs *models.ClubModel, requests *models.RequestModel,
	profiles *models.ProfileModel, stats *models.StatsModel,
	reconciler *Reconciler, fanout *FanoutService, logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		store:      store,
		clubs:      clubs,
		requests:   requests,
		profiles:   profiles,
		stats:      stats,
		reconciler: reconciler,
		fanout:     fanout,
		logger:     logger.Named("membership_service"),
	}
}

// RequestMembership creates a pending request for (user, club). Blocked by
// an existing pending request or active membership; a previously rejected
// request does not block a new one.
func (s *MembershipService) RequestMembership(ctx context.Context, userID, clubID, message string) (string, error) {
	if _, err := s.clubs.Get(ctx, clubID); err != nil {
		return "", err
	}

	if _, pending, err := s.requests.FindPending(ctx, userID, clubID); err != nil {
		return "", err
	} else if pending {
		return "", fmt.Errorf("user %q, club %q: %w", userID, clubID, ErrRequestPending)
	}

	memberSet := models.NewMembershipSet(s.store, types.ClubRef(clubID), types.KindMember, s.logger)

	isMember, err := memberSet.Contains(ctx, userID)
	if err != nil {
		return "", err
	}

	if isMember {
		return "", fmt.Errorf("user %q, club %q: %w", userID, clubID, ErrAlreadyMember)
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrProfileNotFound) {
		return "", err
	}

	request := types.MembershipRequest{
		UserID:   userID,
		ClubID:   clubID,
		Message:  message,
		UserName: profile.DisplayName,
	}

	requestID, err := s.requests.Create(ctx, request)
	if err != nil {
		return "", err
	}

	request.ID = requestID
	s.fanout.NotifyMembershipRequested(ctx, request)

	return requestID, nil
}

// DecideMembership transitions a pending request to approved or rejected.
// Only the club owner may decide. Approval writes the decision, the member
// record, and the member counter bump as one atomic batch.
func (s *MembershipService) DecideMembership(ctx context.Context, requestID string, decision Decision, deciderID string) error {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}

	if request.Status != types.RequestPending {
		return fmt.Errorf("request %q: %w", requestID, ErrRequestDecided)
	}

	club, err := s.clubs.Get(ctx, request.ClubID)
	if err != nil {
		return err
	}

	if club.OwnerID != deciderID {
		return fmt.Errorf("decider %q: %w", deciderID, ErrNotAuthorized)
	}

	if decision == DecisionReject {
		if err := s.requests.Decide(ctx, requestID, types.RequestRejected, deciderID); err != nil {
			return err
		}

		s.fanout.NotifyMembershipDecided(ctx, request, false, club.Name)

		return nil
	}

	now := time.Now()
	record := types.MembershipRecord{
		ID:        uuid.NewString(),
		ActorID:   request.UserID,
		EntityID:  request.ClubID,
		Kind:      types.KindMember,
		UserName:  request.UserName,
		CreatedAt: now,
	}

	memberPath := docstore.JoinPath(types.ClubRef(request.ClubID).SubcollectionPath(types.KindMember), record.ID)

	err = s.store.ApplyBatch(ctx, []docstore.Write{
		{
			Kind: docstore.WriteUpdate,
			Path: docstore.JoinPath(types.CollectionRequests, requestID),
			Fields: docstore.Fields{
				"status":    string(types.RequestApproved),
				"decidedBy": deciderID,
				"decidedAt": now.UTC().Format(time.RFC3339Nano),
			},
		},
		{Kind: docstore.WriteSet, Path: memberPath, Fields: record.Fields()},
		{
			Kind:   docstore.WriteUpdate,
			Path:   types.ClubRef(request.ClubID).Path(),
			Fields: docstore.Fields{"memberCount": docstore.Increment(1)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to approve membership: %w", err)
	}

	// Best-effort follow-ups.
	if err := s.stats.Adjust(ctx, request.ClubID, map[string]int64{"totalMembers": 1}); err != nil {
		s.logger.Warn("Club stats member adjustment failed",
			zap.String("clubId", request.ClubID), zap.Error(err))
	}

	if s.reconciler != nil {
		if _, err := s.reconciler.ReconcileOne(ctx, types.ClubRef(request.ClubID), types.KindMember); err != nil {
			s.logger.Warn("Post-approval reconciliation failed",
				zap.String("clubId", request.ClubID), zap.Error(err))
		}
	}

	s.fanout.NotifyMembershipDecided(ctx, request, true, club.Name)

	return nil
}

// CancelRequest lets a user withdraw their own pending request.
func (s *MembershipService) CancelRequest(ctx context.Context, requestID, userID string) error {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}

	if request.UserID != userID {
		return fmt.Errorf("user %q: %w", userID, ErrNotAuthorized)
	}

	if request.Status != types.RequestPending {
		return fmt.Errorf("request %q: %w", requestID, ErrRequestDecided)
	}

	return s.requests.Delete(ctx, requestID)
}

// RemoveMember lets the club owner remove an approved member. The counter
// decrement clamps at zero and the member set is reconciled afterwards.
func (s *MembershipService) RemoveMember(ctx context.Context, clubID, userID, removerID string) error {
	club, err := s.clubs.Get(ctx, clubID)
	if err != nil {
		return err
	}

	if club.OwnerID != removerID {
		return fmt.Errorf("remover %q: %w", removerID, ErrNotAuthorized)
	}

	memberSet := models.NewMembershipSet(s.store, types.ClubRef(clubID), types.KindMember, s.logger)

	if err := memberSet.Remove(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotAMember) {
			// Idempotent at the call site.
			return nil
		}

		return err
	}

	next := club.MemberCount - 1
	if next < 0 {
		next = 0
	}

	err = s.store.Update(ctx, types.ClubRef(clubID).Path(), docstore.Fields{"memberCount": next})
	if err != nil {
		return fmt.Errorf("failed to update member count: %w", err)
	}

	if err := s.stats.Adjust(ctx, clubID, map[string]int64{"totalMembers": -1}); err != nil {
		s.logger.Warn("Club stats member adjustment failed",
			zap.String("clubId", clubID), zap.Error(err))
	}

	if s.reconciler != nil {
		if _, err := s.reconciler.ReconcileOne(ctx, types.ClubRef(clubID), types.KindMember); err != nil {
			s.logger.Warn("Post-removal reconciliation failed",
				zap.String("clubId", clubID), zap.Error(err))
		}
	}

	s.fanout.NotifyMemberRemoved(ctx, userID, clubID, club.Name)

	return nil
}
