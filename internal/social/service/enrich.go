package service

import (
	"context"

	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/campushub/clubsync/pkg/utils"
	"go.uber.org/zap"
)

// Display fields resolved live-profile-first.
var enrichPriority = []string{"displayName", "avatar", "university"}

// EnrichService decorates raw membership records with live profile data for
// display. Live data wins over the snapshot embedded at write time; when the
// lookup fails or the profile is missing, the embedded snapshot is the
// silent fallback. Enrichment never returns an error.
type EnrichService struct {
	profiles *models.ProfileModel
	logger   *zap.Logger
}

// NewEnrich creates a new enrichment service.
func NewEnrich(profiles *models.ProfileModel, logger *zap.Logger) *EnrichService {
	return &EnrichService{
		profiles: profiles,
		logger:   logger.Named("enrich_service"),
	}
}

// Enrich merges the live profile over the record's embedded snapshot.
func (s *EnrichService) Enrich(ctx context.Context, record types.MembershipRecord) types.DisplayRecord {
	return s.enrich(ctx, record, nil)
}

// EnrichAll decorates a full listing, caching profile lookups per actor for
// the duration of the call. The cache lives only for this render pass.
func (s *EnrichService) EnrichAll(ctx context.Context, records []types.MembershipRecord) []types.DisplayRecord {
	cache := make(map[string]map[string]string, len(records))

	display := make([]types.DisplayRecord, 0, len(records))
	for _, record := range records {
		display = append(display, s.enrich(ctx, record, cache))
	}

	return display
}

func (s *EnrichService) enrich(ctx context.Context, record types.MembershipRecord, cache map[string]map[string]string) types.DisplayRecord {
	embedded := map[string]string{
		"displayName": record.UserName,
		"avatar":      record.UserAvatar,
		"university":  record.UserUniversity,
	}

	live, ok := cache[record.ActorID]
	if !ok {
		live = s.lookup(ctx, record.ActorID)
		if cache != nil {
			cache[record.ActorID] = live
		}
	}

	merged := utils.MergeWithPrecedence(embedded, live, enrichPriority)

	return types.DisplayRecord{
		ActorID:     record.ActorID,
		DisplayName: merged["displayName"],
		AvatarURL:   merged["avatar"],
		University:  merged["university"],
		Body:        record.Body,
		CreatedAt:   record.CreatedAt,
	}
}

// lookup returns the live profile fields, or an empty map when the lookup
// fails for any reason. Failures are logged, never surfaced.
func (s *EnrichService) lookup(ctx context.Context, actorID string) map[string]string {
	profile, err := s.profiles.Get(ctx, actorID)
	if err != nil {
		s.logger.Debug("Profile enrichment lookup failed",
			zap.String("actorId", actorID), zap.Error(err))

		return map[string]string{}
	}

	return map[string]string{
		"displayName": profile.DisplayName,
		"avatar":      profile.AvatarURL,
		"university":  profile.University,
	}
}
