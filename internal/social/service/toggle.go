package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/docretry"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDebounce is the cooldown window suppressing re-entrant toggles from
// rapid repeated taps. A UI-level guard, not a correctness mechanism.
const DefaultDebounce = 1500 * time.Millisecond

// ToggleResult reports the post-transaction state of a toggle.
type ToggleResult struct {
	// Engaged is the actor's membership state after the transaction.
	Engaged bool
	// Counter is the entity's counter value after the transaction.
	Counter int64
}

type debounceKey struct {
	actorID string
	entity  types.EntityRef
	kind    types.Kind
}

// ToggleService implements the membership toggle protocol: one transaction
// that re-reads membership existence and the counter, mutates both, and is
// retried on conflict. The transactional re-read makes a retried toggle
// resolve to the correct final state under concurrent actors.
type ToggleService struct {
	store      docstore.Store
	profiles   *models.ProfileModel
	stats      *models.StatsModel
	reconciler *Reconciler
	fanout     *FanoutService
	retryOpts  docretry.Options
	debounce   time.Duration
	logger     *zap.Logger

	mu         sync.Mutex
	lastToggle map[debounceKey]time.Time
}

// NewToggle creates a new toggle service. Reconciler and fanout are
// best-effort collaborators; either may be nil.
func NewToggle(
	store docstore.Store, profiles *models.ProfileModel, stats *models.StatsModel,
	reconciler *Reconciler, fanout *FanoutService,
	retryOpts docretry.Options, debounce time.Duration, logger *zap.Logger,
) *ToggleService {
	return &ToggleService{
		store:      store,
		profiles:   profiles,
		stats:      stats,
		reconciler: reconciler,
		fanout:     fanout,
		retryOpts:  retryOpts,
		debounce:   debounce,
		logger:     logger.Named("toggle_service"),
		lastToggle: make(map[debounceKey]time.Time),
	}
}

// Engage transitions the actor to membership: like, attend, or share. Safe
// to call when already engaged; the duplicate resolves as success without a
// second record or counter bump.
func (s *ToggleService) Engage(ctx context.Context, actorID string, entity types.EntityRef, kind types.Kind) (ToggleResult, error) {
	return s.toggle(ctx, actorID, entity, kind, true)
}

// Disengage removes the actor's membership: unlike, leave, unshare. Deletes
// every matching record to heal duplicate-record drift, clamping the counter
// decrement at zero.
func (s *ToggleService) Disengage(ctx context.Context, actorID string, entity types.EntityRef, kind types.Kind) (ToggleResult, error) {
	return s.toggle(ctx, actorID, entity, kind, false)
}

func (s *ToggleService) toggle(ctx context.Context, actorID string, entity types.EntityRef, kind types.Kind, engage bool) (ToggleResult, error) {
	key := debounceKey{actorID: actorID, entity: entity, kind: kind}
	if !s.admit(key) {
		return ToggleResult{}, ErrToggleCoolingDown
	}

	// Snapshot the actor's profile for denormalized record fields. Missing
	// profiles still toggle; the record just carries empty display fields.
	snapshot, err := s.profiles.Get(ctx, actorID)
	if err != nil && !errors.Is(err, models.ErrProfileNotFound) {
		s.logger.Warn("Profile snapshot lookup failed",
			zap.String("actorId", actorID), zap.Error(err))
	}

	var (
		result     ToggleResult
		entityDoc  docstore.Document
		priorCount int64
	)

	collection := entity.SubcollectionPath(kind)
	counter := kind.Counter()

	err = docretry.Transaction(ctx, s.store, func(_ context.Context, tx docstore.Tx) error {
		// Each attempt re-reads, so state from a failed attempt never leaks.
		result = ToggleResult{}

		doc, err := tx.Get(entity.Path())
		if err != nil {
			return err
		}

		entityDoc = doc
		priorCount = doc.Int(counter)

		existing, err := tx.Query(docstore.Query{Collection: collection}.Where("userId", actorID))
		if err != nil {
			return err
		}

		if engage {
			if len(existing) > 0 {
				result = ToggleResult{Engaged: true, Counter: priorCount}
				return nil
			}

			record := types.MembershipRecord{
				ID:             uuid.NewString(),
				ActorID:        actorID,
				EntityID:       entity.ID,
				Kind:           kind,
				UserName:       snapshot.DisplayName,
				UserAvatar:     snapshot.AvatarURL,
				UserUniversity: snapshot.University,
				CreatedAt:      time.Now(),
			}

			tx.Set(docstore.JoinPath(collection, record.ID), record.Fields())
			tx.Update(entity.Path(), docstore.Fields{counter: priorCount + 1})

			result = ToggleResult{Engaged: true, Counter: priorCount + 1}

			return nil
		}

		if len(existing) == 0 {
			result = ToggleResult{Engaged: false, Counter: priorCount}
			return nil
		}

		for _, doc := range existing {
			tx.Delete(doc.Path)
		}

		next := priorCount - int64(len(existing))
		if next < 0 {
			next = 0
		}

		tx.Update(entity.Path(), docstore.Fields{counter: next})

		result = ToggleResult{Engaged: false, Counter: next}

		return nil
	}, s.retryOpts)
	if err != nil {
		switch {
		case docstore.IsConflict(err):
			s.logger.Warn("Toggle exhausted conflict retries",
				zap.String("actorId", actorID),
				zap.String("entity", entity.Path()),
				zap.String("kind", string(kind)),
				zap.Error(err))

			return ToggleResult{}, fmt.Errorf("%w: %w", ErrActionFailed, err)
		case errors.Is(err, docstore.ErrNotFound):
			return ToggleResult{}, fmt.Errorf("entity %q: %w", entity.Path(), ErrEntityNotFound)
		default:
			return ToggleResult{}, err
		}
	}

	s.stamp(key)
	s.afterToggle(ctx, actorID, entity, kind, engage, entityDoc, result)

	return result, nil
}

// afterToggle runs the best-effort follow-ups: drift reconciliation, club
// stats adjustment, and notification fanout. Failures are logged, never
// surfaced; none of them can roll back the committed toggle.
func (s *ToggleService) afterToggle(
	ctx context.Context, actorID string, entity types.EntityRef, kind types.Kind,
	engaged bool, entityDoc docstore.Document, result ToggleResult,
) {
	if s.reconciler != nil {
		if err := s.reconciler.VerifyAfterWrite(ctx, entity, kind, result.Counter); err != nil {
			s.logger.Warn("Post-toggle reconciliation failed",
				zap.String("entity", entity.Path()), zap.Error(err))
		}
	}

	clubID := entityDoc.String("clubId")
	if s.stats != nil && clubID != "" {
		delta := int64(1)
		if !engaged {
			delta = -1
		}

		var deltas map[string]int64

		switch kind {
		case types.KindLike:
			deltas = map[string]int64{"totalLikes": delta, "totalInteractions": delta}
		case types.KindAttend:
			deltas = map[string]int64{"totalParticipants": delta, "totalInteractions": delta}
		}

		if deltas != nil {
			if err := s.stats.Adjust(ctx, clubID, deltas); err != nil {
				s.logger.Warn("Club stats adjustment failed",
					zap.String("clubId", clubID), zap.Error(err))
			}
		}
	}

	if s.fanout != nil && entity.Collection == types.CollectionEvents {
		s.fanout.NotifyEngagement(ctx, EngagementNotice{
			ActorID:    actorID,
			Kind:       kind,
			Engaged:    engaged,
			EventID:    entity.ID,
			EventTitle: entityDoc.String("title"),
			ClubID:     clubID,
		})
	}
}

// admit reports whether the toggle is outside the cooldown window.
func (s *ToggleService) admit(key debounceKey) bool {
	if s.debounce <= 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastToggle[key]

	return !ok || time.Since(last) >= s.debounce
}

func (s *ToggleService) stamp(key debounceKey) {
	if s.debounce <= 0 {
		return
	}

	s.mu.Lock()
	s.lastToggle[key] = time.Now()
	s.mu.Unlock()
}
