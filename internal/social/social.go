// Package social wires the document store, models, and services into one
// client the application layers consume.
package social

import (
	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/setup/config"
	"github.com/campushub/clubsync/internal/social/subscription"
	"go.uber.org/zap"
)

// Client defines the methods that a social client must implement.
type Client interface {
	// Model returns the repository containing all model operations.
	Model() *Repository
	// Service returns the service containing all service operations.
	Service() *Service
	// Subscriptions returns the live subscription manager.
	Subscriptions() *subscription.Manager
	// Store returns the underlying document store.
	Store() docstore.Store
	// Close gracefully shuts down the store connection.
	Close() error
}

// clientImpl represents the concrete implementation of the social client.
type clientImpl struct {
	store   docstore.Store
	logger  *zap.Logger
	repo    *Repository
	service *Service
	subs    *subscription.Manager
}

// NewClient assembles models and services over an initialized store.
func NewClient(store docstore.Store, cfg *config.Social, logger *zap.Logger) Client {
	repo := NewRepository(store, logger)
	service := NewService(store, repo, cfg, logger)
	subs := subscription.NewManager(store, logger)

	return &clientImpl{
		store:   store,
		logger:  logger,
		repo:    repo,
		service: service,
		subs:    subs,
	}
}

func (c *clientImpl) Model() *Repository {
	return c.repo
}

func (c *clientImpl) Service() *Service {
	return c.service
}

func (c *clientImpl) Subscriptions() *subscription.Manager {
	return c.subs
}

func (c *clientImpl) Store() docstore.Store {
	return c.store
}

// Close cancels live subscriptions before closing the store.
func (c *clientImpl) Close() error {
	c.subs.CloseAll()
	return c.store.Close()
}
