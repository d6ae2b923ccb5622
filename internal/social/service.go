package social

import (
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/docretry"
	"github.com/campushub/clubsync/internal/setup/config"
	"github.com/campushub/clubsync/internal/social/service"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	toggle     *service.ToggleService
	reconciler *service.Reconciler
	fanout     *service.FanoutService
	enrich     *service.EnrichService
	membership *service.MembershipService
	comment    *service.CommentService
	event      *service.EventService
}

// NewService creates a new service instance with all services.
func NewService(store docstore.Store, repository *Repository, cfg *config.Social, logger *zap.Logger) *Service {
	eventModel := repository.Event()
	clubModel := repository.Club()
	profileModel := repository.Profile()
	requestModel := repository.Request()
	notificationModel := repository.Notification()
	statsModel := repository.Stats()

	retryOpts := docretry.DefaultOptions()
	debounce := service.DefaultDebounce

	if cfg != nil {
		if cfg.Retry.InitialIntervalMs > 0 {
			retryOpts.InitialInterval = time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond
		}

		if cfg.Retry.Multiplier > 0 {
			retryOpts.Multiplier = cfg.Retry.Multiplier
		}

		if cfg.Retry.MaxRetries > 0 {
			retryOpts.MaxRetries = uint64(cfg.Retry.MaxRetries)
		}

		if cfg.ToggleDebounceMs > 0 {
			debounce = time.Duration(cfg.ToggleDebounceMs) * time.Millisecond
		}
	}

	reconciler := service.NewReconciler(store, eventModel, statsModel, logger)
	fanout := service.NewFanout(notificationModel, profileModel, logger)

	return &Service{
		toggle:     service.NewToggle(store, profileModel, statsModel, reconciler, fanout, retryOpts, debounce, logger),
		reconciler: reconciler,
		fanout:     fanout,
		enrich:     service.NewEnrich(profileModel, logger),
		membership: service.NewMembership(store, clubModel, requestModel, profileModel, statsModel, reconciler, fanout, logger),
		comment:    service.NewComment(store, eventModel, profileModel, statsModel, reconciler, fanout, logger),
		event:      service.NewEvent(eventModel, statsModel, reconciler, logger),
	}
}

// Toggle returns the engagement toggle service.
func (s *Service) Toggle() *service.ToggleService {
	return s.toggle
}

// Reconciler returns the counter reconciliation service.
func (s *Service) Reconciler() *service.Reconciler {
	return s.reconciler
}

// Fanout returns the notification fanout service.
func (s *Service) Fanout() *service.FanoutService {
	return s.fanout
}

// Enrich returns the profile enrichment service.
func (s *Service) Enrich() *service.EnrichService {
	return s.enrich
}

// Membership returns the club membership service.
func (s *Service) Membership() *service.MembershipService {
	return s.membership
}

// Comment returns the comment service.
func (s *Service) Comment() *service.CommentService {
	return s.comment
}

// Event returns the event lifecycle service.
func (s *Service) Event() *service.EventService {
	return s.event
}
