package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/types"
	"go.uber.org/zap"
)

// ErrProfileNotFound indicates the user profile document is missing.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileModel handles live profile lookups.
type ProfileModel struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewProfile creates a new profile model.
func NewProfile(store docstore.Store, logger *zap.Logger) *ProfileModel {
	return &ProfileModel{
		store:  store,
		logger: logger.Named("profile_model"),
	}
}

// Get retrieves the live profile for a user.
func (r *ProfileModel) Get(ctx context.Context, userID string) (types.Profile, error) {
	doc, err := r.store.Get(ctx, docstore.JoinPath(types.CollectionUsers, userID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.Profile{}, fmt.Errorf("profile %q: %w", userID, ErrProfileNotFound)
		}

		return types.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	return types.ProfileFromDocument(doc), nil
}

// Put writes a profile document. Used by tests and seed tooling.
func (r *ProfileModel) Put(ctx context.Context, profile types.Profile) error {
	fields := docstore.Fields{
		"displayName":  profile.DisplayName,
		"profileImage": profile.AvatarURL,
		"university":   profile.University,
		"department":   profile.Department,
	}

	err := r.store.Set(ctx, docstore.JoinPath(types.CollectionUsers, profile.ID), fields)
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}

	return nil
}
