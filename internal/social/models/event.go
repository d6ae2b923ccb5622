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

// ErrEventNotFound indicates the requested event does not exist.
var ErrEventNotFound = errors.New("event not found")

// EventModel handles store operations for event documents.
type EventModel struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewEvent creates a new event model.
func NewEvent(store docstore.Store, logger *zap.Logger) *EventModel {
	return &EventModel{
		store:  store,
		logger: logger.Named("event_model"),
	}
}

// Get retrieves an event by ID.
func (r *EventModel) Get(ctx context.Context, eventID string) (types.Event, error) {
	doc, err := r.store.Get(ctx, types.EventRef(eventID).Path())
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.Event{}, fmt.Errorf("event %q: %w", eventID, ErrEventNotFound)
		}

		return types.Event{}, fmt.Errorf("failed to get event: %w", err)
	}

	return types.EventFromDocument(doc), nil
}

// Create writes a new event document with zeroed engagement counters.
func (r *EventModel) Create(ctx context.Context, event types.Event) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Owner aliases follow the club when one exists, the creator otherwise.
	ownerID := event.ClubID
	if ownerID == "" {
		ownerID = event.CreatorID
	}

	fields := docstore.Fields{
		"clubId":         event.ClubID,
		"creatorId":      event.CreatorID,
		"ownerId":        ownerID,
		"title":          event.Title,
		"description":    event.Description,
		"likesCount":     int64(0),
		"attendeesCount": int64(0),
		"sharesCount":    int64(0),
		"commentsCount":  int64(0),
		"createdAt":      event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	if err := r.store.Set(ctx, types.EventRef(event.ID).Path(), fields); err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}

	return event.ID, nil
}

// Delete removes an event document.
func (r *EventModel) Delete(ctx context.Context, eventID string) error {
	if err := r.store.Delete(ctx, types.EventRef(eventID).Path()); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

// ListByClub returns every event owned by the club.
func (r *EventModel) ListByClub(ctx context.Context, clubID string) ([]types.Event, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: types.CollectionEvents}.Where("clubId", clubID))
	if err != nil {
		return nil, fmt.Errorf("failed to list club events: %w", err)
	}

	events := make([]types.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, types.EventFromDocument(doc))
	}

	return events, nil
}

// SetCounter overwrites one counter field on the event document.
func (r *EventModel) SetCounter(ctx context.Context, eventID, counter string, value int64) error {
	err := r.store.Update(ctx, types.EventRef(eventID).Path(), docstore.Fields{counter: value})
	if err != nil {
		return fmt.Errorf("failed to set counter %s: %w", counter, err)
	}

	return nil
}
