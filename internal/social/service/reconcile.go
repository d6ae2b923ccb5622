package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Reconciler keeps denormalized counters equal to the true size of their
// membership sets. It is the self-healing backstop for counter drift: safe
// to run concurrently with toggles because both converge to the same true
// count, and idempotent because an in-sync counter is never rewritten.
type Reconciler struct {
	store  docstore.Store
	events *models.EventModel
	stats  *models.StatsModel
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(store docstore.Store, events *models.EventModel, stats *models.StatsModel, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		events: events,
		stats:  stats,
		logger: logger.Named("reconciler"),
	}
}

// ReconcileOne recomputes one counter from its membership set and overwrites
// the stored value only when they differ. Returns the corrected value.
func (r *Reconciler) ReconcileOne(ctx context.Context, entity types.EntityRef, kind types.Kind) (int64, error) {
	set := models.NewMembershipSet(r.store, entity, kind, r.logger)

	trueCount, err := set.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s set: %w", kind, err)
	}

	doc, err := r.store.Get(ctx, entity.Path())
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, fmt.Errorf("entity %q: %w", entity.Path(), ErrEntityNotFound)
		}

		return 0, fmt.Errorf("failed to read entity: %w", err)
	}

	counter := kind.Counter()
	stored := doc.Int(counter)

	if stored == trueCount {
		return stored, nil
	}

	// Overwrite, not increment: concurrent toggles and reconciliation are
	// last-writer-wins on this field and both converge to the true count.
	err = r.store.Update(ctx, entity.Path(), docstore.Fields{counter: trueCount})
	if err != nil {
		return 0, fmt.Errorf("failed to correct counter %s: %w", counter, err)
	}

	r.logger.Info("Corrected drifted counter",
		zap.String("entity", entity.Path()),
		zap.String("counter", counter),
		zap.Int64("stored", stored),
		zap.Int64("actual", trueCount))

	return trueCount, nil
}

// ReconcileAll recomputes every counter carried by the entity.
func (r *Reconciler) ReconcileAll(ctx context.Context, entity types.EntityRef) (map[string]int64, error) {
	kinds := types.EventKinds()
	if entity.Collection == types.CollectionClubs {
		kinds = []types.Kind{types.KindMember}
	}

	corrected := make(map[string]int64, len(kinds))

	for _, kind := range kinds {
		value, err := r.ReconcileOne(ctx, entity, kind)
		if err != nil {
			return nil, err
		}

		corrected[kind.Counter()] = value
	}

	return corrected, nil
}

// VerifyAfterWrite is the post-toggle drift check: it recounts the set and
// corrects the counter when the transaction's expected value disagrees with
// the true size, which happens when a concurrent writer interleaved.
func (r *Reconciler) VerifyAfterWrite(ctx context.Context, entity types.EntityRef, kind types.Kind, expected int64) error {
	set := models.NewMembershipSet(r.store, entity, kind, r.logger)

	trueCount, err := set.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify %s set: %w", kind, err)
	}

	if trueCount == expected {
		return nil
	}

	_, err = r.ReconcileOne(ctx, entity, kind)

	return err
}

// MaybeReconcile is the opportunistic read-path trigger: a stored counter
// that reads zero is never trusted, because a torn write can leave a stale
// zero while members exist. Under-reporting is worse than the extra read.
func (r *Reconciler) MaybeReconcile(ctx context.Context, entity types.EntityRef, kind types.Kind, observed int64) (int64, error) {
	if observed != 0 {
		return observed, nil
	}

	return r.ReconcileOne(ctx, entity, kind)
}

// ForceRefreshClubStats recomputes the club's aggregate document from the
// ground up: event count from the events collection, member count from the
// member set, and likes, comments, and participants rolled up across every
// event of the club. Participants are recounted from each event's attendee
// set rather than trusted from the event document.
func (r *Reconciler) ForceRefreshClubStats(ctx context.Context, clubID string) (types.ClubStats, error) {
	events, err := r.events.ListByClub(ctx, clubID)
	if err != nil {
		return types.ClubStats{}, err
	}

	memberSet := models.NewMembershipSet(r.store, types.ClubRef(clubID), types.KindMember, r.logger)

	memberCount, err := memberSet.Count(ctx)
	if err != nil {
		return types.ClubStats{}, err
	}

	var (
		mu                sync.Mutex
		totalLikes        int64
		totalComments     int64
		totalParticipants int64
	)

	p := pool.New().WithContext(ctx)

	for _, event := range events {
		event := event
		p.Go(func(ctx context.Context) error {
			attendees := models.NewMembershipSet(r.store, types.EventRef(event.ID), types.KindAttend, r.logger)

			attendeeCount, err := attendees.Count(ctx)
			if err != nil {
				return err
			}

			mu.Lock()
			totalLikes += event.LikesCount
			totalComments += event.CommentsCount
			totalParticipants += attendeeCount
			mu.Unlock()

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return types.ClubStats{}, fmt.Errorf("failed to roll up club stats: %w", err)
	}

	stats := types.ClubStats{
		ClubID:            clubID,
		TotalEvents:       int64(len(events)),
		TotalMembers:      memberCount,
		TotalLikes:        totalLikes,
		TotalComments:     totalComments,
		TotalParticipants: totalParticipants,
	}
	stats.TotalInteractions = stats.TotalEvents + stats.TotalLikes + stats.TotalComments + stats.TotalParticipants

	if err := r.stats.Overwrite(ctx, stats); err != nil {
		return types.ClubStats{}, err
	}

	r.logger.Debug("Refreshed club stats",
		zap.String("clubId", clubID),
		zap.Int64("totalEvents", stats.TotalEvents),
		zap.Int64("totalInteractions", stats.TotalInteractions))

	return stats, nil
}
