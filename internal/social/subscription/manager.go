// Package subscription owns the live-view listener lifecycle. Callers get
// explicit disposable handles instead of ambient per-entity listener maps,
// making teardown a first-class, testable operation.
package subscription

import (
	"errors"
	"sync"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/models"
	"github.com/campushub/clubsync/internal/social/types"
	"go.uber.org/zap"
)

// ErrManagerClosed indicates the manager was shut down.
var ErrManagerClosed = errors.New("subscription manager closed")

// Handle cancels one subscription. Safe to call more than once.
type Handle struct {
	once   sync.Once
	cancel func()
}

// Close cancels the subscription.
func (h *Handle) Close() {
	h.once.Do(h.cancel)
}

// Manager tracks every live subscription so component teardown can release
// them all. A late callback after Close is harmless as long as the caller
// applies snapshots idempotently; the manager only guarantees delivery stops
// eventually.
type Manager struct {
	store  docstore.Store
	logger *zap.Logger

	mu     sync.Mutex
	nextID int64
	active map[int64]func()
	closed bool
}

// NewManager creates a subscription manager over the store.
func NewManager(store docstore.Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.Named("subscriptions"),
		active: make(map[int64]func()),
	}
}

// SubscribeToMembership delivers the full membership list of (entity, kind)
// after every mutation.
func (m *Manager) SubscribeToMembership(entity types.EntityRef, kind types.Kind, callback func([]types.MembershipRecord)) (*Handle, error) {
	set := models.NewMembershipSet(m.store, entity, kind, m.logger)

	cancel, err := set.Subscribe(callback)
	if err != nil {
		return nil, err
	}

	return m.track(cancel)
}

// SubscribeToCounter delivers the current value of one counter after every
// mutation of its backing membership set. The callback receives the full
// current value, not a delta.
func (m *Manager) SubscribeToCounter(entity types.EntityRef, name string, callback func(int64)) (*Handle, error) {
	cancel, err := m.store.Subscribe(docstore.Query{Collection: entity.Collection}, func(snapshot docstore.Snapshot) {
		for _, doc := range snapshot.Docs {
			if doc.Path == entity.Path() {
				callback(doc.Int(name))
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return m.track(cancel)
}

// CloseAll cancels every active subscription and rejects new ones.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	cancels := make([]func(), 0, len(m.active))

	for _, cancel := range m.active {
		cancels = append(cancels, cancel)
	}

	m.active = make(map[int64]func())
	m.closed = true
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	m.logger.Debug("Cancelled all subscriptions", zap.Int("count", len(cancels)))
}

// Active returns the number of live subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.active)
}

func (m *Manager) track(cancel func()) (*Handle, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		cancel()

		return nil, ErrManagerClosed
	}

	id := m.nextID
	m.nextID++
	m.active[id] = cancel
	m.mu.Unlock()

	return &Handle{cancel: func() {
		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()

		cancel()
	}}, nil
}
