package social

import (
	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/models"
	"go.uber.org/zap"
)

// Repository provides access to all document models.
type Repository struct {
	event        *models.EventModel
	club         *models.ClubModel
	profile      *models.ProfileModel
	request      *models.RequestModel
	notification *models.NotificationModel
	stats        *models.StatsModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(store docstore.Store, logger *zap.Logger) *Repository {
	return &Repository{
		event:        models.NewEvent(store, logger),
		club:         models.NewClub(store, logger),
		profile:      models.NewProfile(store, logger),
		request:      models.NewRequest(store, logger),
		notification: models.NewNotification(store, logger),
		stats:        models.NewStats(store, logger),
	}
}

// Event returns the event model repository.
func (r *Repository) Event() *models.EventModel {
	return r.event
}

// Club returns the club model repository.
func (r *Repository) Club() *models.ClubModel {
	return r.club
}

// Profile returns the profile model repository.
func (r *Repository) Profile() *models.ProfileModel {
	return r.profile
}

// Request returns the membership request model repository.
func (r *Repository) Request() *models.RequestModel {
	return r.request
}

// Notification returns the notification model repository.
func (r *Repository) Notification() *models.NotificationModel {
	return r.notification
}

// Stats returns the club stats model repository.
func (r *Repository) Stats() *models.StatsModel {
	return r.stats
}
