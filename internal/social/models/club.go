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

// ErrClubNotFound indicates the club document does not exist.
var ErrClubNotFound = errors.New("club not found")

// Club is a club account document carrying the denormalized member counter.
type Club struct {
	ID          string
	Name        string
	OwnerID     string
	MemberCount int64
}

// ClubModel handles store operations for club documents.
type ClubModel struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewClub creates a new club model.
func NewClub(store docstore.Store, logger *zap.Logger) *ClubModel {
	return &ClubModel{
		store:  store,
		logger: logger.Named("club_model"),
	}
}

// Get retrieves a club by ID.
func (r *ClubModel) Get(ctx context.Context, clubID string) (Club, error) {
	doc, err := r.store.Get(ctx, types.ClubRef(clubID).Path())
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Club{}, fmt.Errorf("club %q: %w", clubID, ErrClubNotFound)
		}

		return Club{}, fmt.Errorf("failed to get club: %w", err)
	}

	return Club{
		ID:          clubID,
		Name:        doc.String("name"),
		OwnerID:     doc.String("ownerId"),
		MemberCount: doc.Int("memberCount"),
	}, nil
}

// Create writes a club document with a zeroed member counter.
func (r *ClubModel) Create(ctx context.Context, club Club) error {
	fields := docstore.Fields{
		"name":        club.Name,
		"ownerId":     club.OwnerID,
		"memberCount": int64(0),
		"createdAt":   time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := r.store.Set(ctx, types.ClubRef(club.ID).Path(), fields); err != nil {
		return fmt.Errorf("failed to create club: %w", err)
	}

	return nil
}

// ListIDs returns the IDs of all clubs. Used by the reconciliation sweep.
func (r *ClubModel) ListIDs(ctx context.Context) ([]string, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: types.CollectionClubs})
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, docstore.IDOf(doc.Path))
	}

	return ids, nil
}
