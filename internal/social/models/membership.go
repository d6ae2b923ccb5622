package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateMember indicates the actor already has an active record in
	// the set. Callers treat this as success.
	ErrDuplicateMember = errors.New("actor is already a member")
	// ErrNotAMember indicates no active record exists for the actor. Callers
	// treat this as success.
	ErrNotAMember = errors.New("actor is not a member")
)

// DefaultListLimit caps membership listings for UI consumption.
const DefaultListLimit = 100

// MembershipSet is the authoritative collection backing one aggregate
// counter: the likers, attendees, sharers, comments, or members of a single
// entity. Record presence is the source of truth for membership state.
type MembershipSet struct {
	store  docstore.Store
	entity types.EntityRef
	kind   types.Kind
	logger *zap.Logger
}

// NewMembershipSet creates a membership set for one (entity, kind) pair.
func NewMembershipSet(store docstore.Store, entity types.EntityRef, kind types.Kind, logger *zap.Logger) *MembershipSet {
	return &MembershipSet{
		store:  store,
		entity: entity,
		kind:   kind,
		logger: logger.Named("membership_set"),
	}
}

// Entity returns the parent entity reference.
func (m *MembershipSet) Entity() types.EntityRef {
	return m.entity
}

// Kind returns the engagement kind this set backs.
func (m *MembershipSet) Kind() types.Kind {
	return m.kind
}

// CollectionPath returns the subcollection path holding the records.
func (m *MembershipSet) CollectionPath() string {
	return m.entity.SubcollectionPath(m.kind)
}

// Add creates a record for the actor, failing with ErrDuplicateMember when
// an active record already exists.
func (m *MembershipSet) Add(ctx context.Context, record types.MembershipRecord) (string, error) {
	existing, err := m.store.Query(ctx, m.actorQuery(record.ActorID))
	if err != nil {
		return "", fmt.Errorf("failed to check existing membership: %w", err)
	}

	if len(existing) > 0 {
		return docstore.IDOf(existing[0].Path), ErrDuplicateMember
	}

	return m.Append(ctx, record)
}

// Append creates a record without a uniqueness check. Comment sets allow
// multiple records per actor.
func (m *MembershipSet) Append(ctx context.Context, record types.MembershipRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	record.EntityID = m.entity.ID
	record.Kind = m.kind

	path := docstore.JoinPath(m.CollectionPath(), record.ID)
	if err := m.store.Set(ctx, path, record.Fields()); err != nil {
		return "", fmt.Errorf("failed to add membership record: %w", err)
	}

	return record.ID, nil
}

// Remove deletes every active record for the actor, failing with
// ErrNotAMember when none exists. Deleting all matches guards against
// duplicate-record drift.
func (m *MembershipSet) Remove(ctx context.Context, actorID string) error {
	existing, err := m.store.Query(ctx, m.actorQuery(actorID))
	if err != nil {
		return fmt.Errorf("failed to find membership records: %w", err)
	}

	if len(existing) == 0 {
		return ErrNotAMember
	}

	for _, doc := range existing {
		if err := m.store.Delete(ctx, doc.Path); err != nil {
			return fmt.Errorf("failed to remove membership record: %w", err)
		}
	}

	return nil
}

// Contains reports whether the actor has an active record.
func (m *MembershipSet) Contains(ctx context.Context, actorID string) (bool, error) {
	existing, err := m.store.Query(ctx, m.actorQuery(actorID))
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return len(existing) > 0, nil
}

// Count returns the authoritative cardinality by reading the full member
// list. This is the ground truth reconciliation trusts, never the cached
// counter.
func (m *MembershipSet) Count(ctx context.Context) (int64, error) {
	docs, err := m.store.Query(ctx, docstore.Query{Collection: m.CollectionPath()})
	if err != nil {
		return 0, fmt.Errorf("failed to count membership set: %w", err)
	}

	return int64(len(docs)), nil
}

// List returns members newest-first, capped for display.
func (m *MembershipSet) List(ctx context.Context, limit int) ([]types.MembershipRecord, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	docs, err := m.store.Query(ctx, docstore.Query{
		Collection: m.CollectionPath(),
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list membership set: %w", err)
	}

	records := make([]types.MembershipRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, types.RecordFromDocument(doc))
	}

	return records, nil
}

// ActorIDs returns the distinct actor IDs currently in the set.
func (m *MembershipSet) ActorIDs(ctx context.Context) ([]string, error) {
	docs, err := m.store.Query(ctx, docstore.Query{Collection: m.CollectionPath()})
	if err != nil {
		return nil, fmt.Errorf("failed to read membership set: %w", err)
	}

	seen := make(map[string]struct{}, len(docs))
	ids := make([]string, 0, len(docs))

	for _, doc := range docs {
		actorID := doc.String("userId")
		if actorID == "" {
			continue
		}

		if _, ok := seen[actorID]; ok {
			continue
		}

		seen[actorID] = struct{}{}
		ids = append(ids, actorID)
	}

	return ids, nil
}

// Subscribe delivers the full membership list on every mutation of the set.
func (m *MembershipSet) Subscribe(callback func([]types.MembershipRecord)) (func(), error) {
	cancel, err := m.store.Subscribe(docstore.Query{
		Collection: m.CollectionPath(),
		OrderBy:    "createdAt",
		Descending: true,
	}, func(snapshot docstore.Snapshot) {
		records := make([]types.MembershipRecord, 0, len(snapshot.Docs))
		for _, doc := range snapshot.Docs {
			records = append(records, types.RecordFromDocument(doc))
		}

		callback(records)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to membership set: %w", err)
	}

	return cancel, nil
}

func (m *MembershipSet) actorQuery(actorID string) docstore.Query {
	return docstore.Query{Collection: m.CollectionPath()}.Where("userId", actorID)
}
