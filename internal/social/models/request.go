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

// ErrRequestNotFound indicates the membership request does not exist.
var ErrRequestNotFound = errors.New("membership request not found")

// RequestModel handles store operations for membership requests.
type RequestModel struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewRequest creates a new membership request model.
func NewRequest(store docstore.Store, logger *zap.Logger) *RequestModel {
	return &RequestModel{
		store:  store,
		logger: logger.Named("request_model"),
	}
}

// Get retrieves a membership request by ID.
func (r *RequestModel) Get(ctx context.Context, requestID string) (types.MembershipRequest, error) {
	doc, err := r.store.Get(ctx, requestPath(requestID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.MembershipRequest{}, fmt.Errorf("request %q: %w", requestID, ErrRequestNotFound)
		}

		return types.MembershipRequest{}, fmt.Errorf("failed to get membership request: %w", err)
	}

	return types.RequestFromDocument(doc), nil
}

// Create writes a new pending request.
func (r *RequestModel) Create(ctx context.Context, request types.MembershipRequest) (string, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}

	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now()
	}

	fields := docstore.Fields{
		"userId":      request.UserID,
		"clubId":      request.ClubID,
		"status":      string(types.RequestPending),
		"message":     request.Message,
		"userName":    request.UserName,
		"requestDate": request.RequestedAt.UTC().Format(time.RFC3339Nano),
	}

	if err := r.store.Set(ctx, requestPath(request.ID), fields); err != nil {
		return "", fmt.Errorf("failed to create membership request: %w", err)
	}

	return request.ID, nil
}

// FindPending returns the pending request for (user, club), if any.
func (r *RequestModel) FindPending(ctx context.Context, userID, clubID string) (types.MembershipRequest, bool, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: types.CollectionRequests}.
		Where("userId", userID).
		Where("clubId", clubID).
		Where("status", string(types.RequestPending)))
	if err != nil {
		return types.MembershipRequest{}, false, fmt.Errorf("failed to query pending requests: %w", err)
	}

	if len(docs) == 0 {
		return types.MembershipRequest{}, false, nil
	}

	return types.RequestFromDocument(docs[0]), true, nil
}

// ListPendingForClub returns every pending request targeting the club,
// newest first.
func (r *RequestModel) ListPendingForClub(ctx context.Context, clubID string) ([]types.MembershipRequest, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: types.CollectionRequests,
		OrderBy:    "requestDate",
		Descending: true,
	}.Where("clubId", clubID).Where("status", string(types.RequestPending)))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	requests := make([]types.MembershipRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, types.RequestFromDocument(doc))
	}

	return requests, nil
}

// Decide transitions a pending request to approved or rejected.
func (r *RequestModel) Decide(ctx context.Context, requestID string, status types.RequestStatus, deciderID string) error {
	err := r.store.Update(ctx, requestPath(requestID), docstore.Fields{
		"status":    string(status),
		"decidedBy": deciderID,
		"decidedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("request %q: %w", requestID, ErrRequestNotFound)
		}

		return fmt.Errorf("failed to decide membership request: %w", err)
	}

	return nil
}

// Delete removes a request document. Used when a user cancels their own
// pending request.
func (r *RequestModel) Delete(ctx context.Context, requestID string) error {
	if err := r.store.Delete(ctx, requestPath(requestID)); err != nil {
		return fmt.Errorf("failed to delete membership request: %w", err)
	}

	return nil
}

func requestPath(requestID string) string {
	return docstore.JoinPath(types.CollectionRequests, requestID)
}
