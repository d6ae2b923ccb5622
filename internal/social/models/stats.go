package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/types"
	"go.uber.org/zap"
)

// StatsModel handles the per-club aggregate stats document.
type StatsModel struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewStats creates a new club stats model.
func NewStats(store docstore.Store, logger *zap.Logger) *StatsModel {
	return &StatsModel{
		store:  store,
		logger: logger.Named("stats_model"),
	}
}

// Get retrieves club stats, creating a zeroed document when none exists.
func (r *StatsModel) Get(ctx context.Context, clubID string) (types.ClubStats, error) {
	doc, err := r.store.Get(ctx, statsPath(clubID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			if err := r.Ensure(ctx, clubID); err != nil {
				return types.ClubStats{}, err
			}

			return types.ClubStats{ClubID: clubID}, nil
		}

		return types.ClubStats{}, fmt.Errorf("failed to get club stats: %w", err)
	}

	return types.StatsFromDocument(doc), nil
}

// Ensure creates the stats document with zeroed totals when it is missing.
func (r *StatsModel) Ensure(ctx context.Context, clubID string) error {
	if _, err := r.store.Get(ctx, statsPath(clubID)); err == nil {
		return nil
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to check club stats: %w", err)
	}

	fields := docstore.Fields{
		"clubId":            clubID,
		"totalEvents":       int64(0),
		"totalMembers":      int64(0),
		"totalLikes":        int64(0),
		"totalComments":     int64(0),
		"totalParticipants": int64(0),
		"totalInteractions": int64(0),
		"lastUpdated":       time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := r.store.Set(ctx, statsPath(clubID), fields); err != nil {
		return fmt.Errorf("failed to initialize club stats: %w", err)
	}

	return nil
}

// Adjust applies atomic increments to one or more stats fields.
func (r *StatsModel) Adjust(ctx context.Context, clubID string, deltas map[string]int64) error {
	if err := r.Ensure(ctx, clubID); err != nil {
		return err
	}

	fields := make(docstore.Fields, len(deltas)+1)
	for field, delta := range deltas {
		fields[field] = docstore.Increment(delta)
	}

	fields["lastUpdated"] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := r.store.Update(ctx, statsPath(clubID), fields); err != nil {
		return fmt.Errorf("failed to adjust club stats: %w", err)
	}

	return nil
}

// Overwrite replaces the stats totals with recomputed values.
func (r *StatsModel) Overwrite(ctx context.Context, stats types.ClubStats) error {
	if err := r.Ensure(ctx, stats.ClubID); err != nil {
		return err
	}

	fields := docstore.Fields{
		"totalEvents":       stats.TotalEvents,
		"totalMembers":      stats.TotalMembers,
		"totalLikes":        stats.TotalLikes,
		"totalComments":     stats.TotalComments,
		"totalParticipants": stats.TotalParticipants,
		"totalInteractions": stats.TotalInteractions,
		"lastUpdated":       time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := r.store.Update(ctx, statsPath(stats.ClubID), fields); err != nil {
		return fmt.Errorf("failed to overwrite club stats: %w", err)
	}

	return nil
}

func statsPath(clubID string) string {
	return docstore.JoinPath(types.CollectionStats, clubID)
}
