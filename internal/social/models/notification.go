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

// ErrNotificationNotFound indicates the notification does not exist.
var ErrNotificationNotFound = errors.New("notification not found")

// DefaultInboxLimit caps inbox listings.
const DefaultInboxLimit = 50

// NotificationModel handles store operations for notification records.
type NotificationModel struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewNotification creates a new notification model.
func NewNotification(store docstore.Store, logger *zap.Logger) *NotificationModel {
	return &NotificationModel{
		store:  store,
		logger: logger.Named("notification_model"),
	}
}

// Create writes one notification record. Fire-and-forget callers log the
// returned error and move on.
func (r *NotificationModel) Create(ctx context.Context, notification types.NotificationRecord) (string, error) {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	path := docstore.JoinPath(types.CollectionInbox, notification.ID)
	if err := r.store.Set(ctx, path, notification.Fields()); err != nil {
		return "", fmt.Errorf("failed to create notification: %w", err)
	}

	return notification.ID, nil
}

// ListInbox returns a recipient's notifications, newest first.
func (r *NotificationModel) ListInbox(ctx context.Context, recipientID string, limit int) ([]types.NotificationRecord, error) {
	if limit <= 0 || limit > DefaultInboxLimit {
		limit = DefaultInboxLimit
	}

	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: types.CollectionInbox,
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	}.Where("recipientId", recipientID))
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	notifications := make([]types.NotificationRecord, 0, len(docs))
	for _, doc := range docs {
		notifications = append(notifications, types.NotificationFromDocument(doc))
	}

	return notifications, nil
}

// MarkRead flips the read flag. Only the recipient may acknowledge their own
// notifications.
func (r *NotificationModel) MarkRead(ctx context.Context, notificationID, recipientID string) error {
	path := docstore.JoinPath(types.CollectionInbox, notificationID)

	doc, err := r.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("notification %q: %w", notificationID, ErrNotificationNotFound)
		}

		return fmt.Errorf("failed to get notification: %w", err)
	}

	if doc.String("recipientId") != recipientID {
		return fmt.Errorf("notification %q: %w", notificationID, docstore.ErrPermissionDenied)
	}

	if err := r.store.Update(ctx, path, docstore.Fields{"read": true}); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return nil
}
