// Package types defines the entities of the club engagement layer: events,
// clubs, membership records and requests, notifications, and profiles.
package types

import (
	"time"

	"github.com/campushub/clubsync/internal/docstore"
)

// Top-level collections.
const (
	CollectionEvents   = "events"
	CollectionClubs    = "clubs"
	CollectionUsers    = "users"
	CollectionStats    = "clubStats"
	CollectionRequests = "membershipRequests"
	CollectionInbox    = "notifications"
)

// Kind identifies one engagement type on an entity. Each kind owns exactly
// one membership subcollection and one aggregate counter.
type Kind string

const (
	KindLike    Kind = "like"
	KindAttend  Kind = "attend"
	KindShare   Kind = "share"
	KindComment Kind = "comment"
	KindMember  Kind = "member"
)

// Subcollection returns the membership subcollection name for the kind.
func (k Kind) Subcollection() string {
	switch k {
	case KindLike:
		return "likes"
	case KindAttend:
		return "attendees"
	case KindShare:
		return "shares"
	case KindComment:
		return "comments"
	case KindMember:
		return "members"
	default:
		return string(k)
	}
}

// Counter returns the denormalized counter field the kind maintains on its
// parent entity.
func (k Kind) Counter() string {
	switch k {
	case KindLike:
		return "likesCount"
	case KindAttend:
		return "attendeesCount"
	case KindShare:
		return "sharesCount"
	case KindComment:
		return "commentsCount"
	case KindMember:
		return "memberCount"
	default:
		return string(k) + "Count"
	}
}

// EventKinds are the engagement kinds carried by an event document.
func EventKinds() []Kind {
	return []Kind{KindLike, KindAttend, KindShare, KindComment}
}

// EntityRef addresses one counter-bearing entity.
type EntityRef struct {
	Collection string
	ID         string
}

// EventRef returns a reference to an event entity.
func EventRef(eventID string) EntityRef {
	return EntityRef{Collection: CollectionEvents, ID: eventID}
}

// ClubRef returns a reference to a club entity.
func ClubRef(clubID string) EntityRef {
	return EntityRef{Collection: CollectionClubs, ID: clubID}
}

// Path returns the entity's document path.
func (e EntityRef) Path() string {
	return docstore.JoinPath(e.Collection, e.ID)
}

// SubcollectionPath returns the path of the membership subcollection for kind.
func (e EntityRef) SubcollectionPath(kind Kind) string {
	return docstore.JoinPath(e.Collection, e.ID, kind.Subcollection())
}

// MembershipRecord is one row of a membership subcollection: the source of
// truth for an actor's engagement with an entity. Profile fields are a
// denormalized snapshot taken at write time.
type MembershipRecord struct {
	ID             string
	ActorID        string
	EntityID       string
	Kind           Kind
	UserName       string
	UserAvatar     string
	UserUniversity string
	Body           string
	CreatedAt      time.Time
}

// Fields flattens the record into store fields.
func (r MembershipRecord) Fields() docstore.Fields {
	return docstore.Fields{
		"userId":         r.ActorID,
		"entityId":       r.EntityID,
		"kind":           string(r.Kind),
		"userName":       r.UserName,
		"userAvatar":     r.UserAvatar,
		"userUniversity": r.UserUniversity,
		"body":           r.Body,
		"createdAt":      r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// RecordFromDocument rebuilds a membership record from its stored document.
func RecordFromDocument(doc docstore.Document) MembershipRecord {
	createdAt, _ := time.Parse(time.RFC3339Nano, doc.String("createdAt"))

	return MembershipRecord{
		ID:             docstore.IDOf(doc.Path),
		ActorID:        doc.String("userId"),
		EntityID:       doc.String("entityId"),
		Kind:           Kind(doc.String("kind")),
		UserName:       doc.String("userName"),
		UserAvatar:     doc.String("userAvatar"),
		UserUniversity: doc.String("userUniversity"),
		Body:           doc.String("body"),
		CreatedAt:      createdAt,
	}
}

// Event is a club event carrying the denormalized engagement counters.
type Event struct {
	ID             string
	ClubID         string
	CreatorID      string
	Title          string
	Description    string
	LikesCount     int64
	AttendeesCount int64
	SharesCount    int64
	CommentsCount  int64
	CreatedAt      time.Time
}

// EventFromDocument rebuilds an event from its stored document.
func EventFromDocument(doc docstore.Document) Event {
	createdAt, _ := time.Parse(time.RFC3339Nano, doc.String("createdAt"))

	return Event{
		ID:             docstore.IDOf(doc.Path),
		ClubID:         doc.String("clubId"),
		CreatorID:      doc.String("creatorId"),
		Title:          doc.String("title"),
		Description:    doc.String("description"),
		LikesCount:     doc.Int("likesCount"),
		AttendeesCount: doc.Int("attendeesCount"),
		SharesCount:    doc.Int("sharesCount"),
		CommentsCount:  doc.Int("commentsCount"),
		CreatedAt:      createdAt,
	}
}

// RequestStatus is the lifecycle state of a membership request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// MembershipRequest is a student's application to join a club. At most one
// pending request exists per (user, club); a rejected request does not block
// a new one.
type MembershipRequest struct {
	ID          string
	UserID      string
	ClubID      string
	Status      RequestStatus
	Message     string
	UserName    string
	RequestedAt time.Time
	DecidedBy   string
	DecidedAt   time.Time
}

// RequestFromDocument rebuilds a membership request from its stored document.
func RequestFromDocument(doc docstore.Document) MembershipRequest {
	requestedAt, _ := time.Parse(time.RFC3339Nano, doc.String("requestDate"))
	decidedAt, _ := time.Parse(time.RFC3339Nano, doc.String("decidedAt"))

	return MembershipRequest{
		ID:          docstore.IDOf(doc.Path),
		UserID:      doc.String("userId"),
		ClubID:      doc.String("clubId"),
		Status:      RequestStatus(doc.String("status")),
		Message:     doc.String("message"),
		UserName:    doc.String("userName"),
		RequestedAt: requestedAt,
		DecidedBy:   doc.String("decidedBy"),
		DecidedAt:   decidedAt,
	}
}

// RecipientType distinguishes club and student notification inboxes.
type RecipientType string

const (
	RecipientClub    RecipientType = "club"
	RecipientStudent RecipientType = "student"
)

// NotificationCategory groups notifications for inbox filtering.
type NotificationCategory string

const (
	CategoryMembership NotificationCategory = "membership"
	CategoryEvents     NotificationCategory = "events"
	CategorySocial     NotificationCategory = "social"
)

// Notification event kinds produced by the fanout.
const (
	NotifyEventLiked         = "event_like"
	NotifyEventUnliked       = "event_unlike"
	NotifyEventJoined        = "event_join"
	NotifyEventLeft          = "event_leave"
	NotifyEventCommented     = "event_comment"
	NotifyCommentOnLiked     = "event_comment_received"
	NotifyCommentOnJoined    = "joined_event_comment"
	NotifyMembershipRequest  = "membership_request"
	NotifyMembershipApproved = "membership_approved"
	NotifyMembershipRejected = "membership_rejected"
	NotifyMembershipRemoved  = "membership_removed"
)

// NotificationRecord is one recipient-scoped notification. Immutable after
// creation except the read flag, which only the recipient flips.
type NotificationRecord struct {
	ID            string
	RecipientID   string
	RecipientType RecipientType
	SenderID      string
	Type          string
	Category      NotificationCategory
	Title         string
	Message       string
	EventID       string
	ClubID        string
	Read          bool
	CreatedAt     time.Time
}

// Fields flattens the notification into store fields.
func (n NotificationRecord) Fields() docstore.Fields {
	return docstore.Fields{
		"recipientId":   n.RecipientID,
		"recipientType": string(n.RecipientType),
		"senderId":      n.SenderID,
		"type":          n.Type,
		"category":      string(n.Category),
		"title":         n.Title,
		"message":       n.Message,
		"eventId":       n.EventID,
		"clubId":        n.ClubID,
		"read":          n.Read,
		"createdAt":     n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// NotificationFromDocument rebuilds a notification from its stored document.
func NotificationFromDocument(doc docstore.Document) NotificationRecord {
	createdAt, _ := time.Parse(time.RFC3339Nano, doc.String("createdAt"))
	read, _ := doc.Fields["read"].(bool)

	return NotificationRecord{
		ID:            docstore.IDOf(doc.Path),
		RecipientID:   doc.String("recipientId"),
		RecipientType: RecipientType(doc.String("recipientType")),
		SenderID:      doc.String("senderId"),
		Type:          doc.String("type"),
		Category:      NotificationCategory(doc.String("category")),
		Title:         doc.String("title"),
		Message:       doc.String("message"),
		EventID:       doc.String("eventId"),
		ClubID:        doc.String("clubId"),
		Read:          read,
		CreatedAt:     createdAt,
	}
}

// Profile is the live user profile document.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
	University  string
	Department  string
}

// ProfileFromDocument rebuilds a profile from its stored document.
func ProfileFromDocument(doc docstore.Document) Profile {
	return Profile{
		ID:          docstore.IDOf(doc.Path),
		DisplayName: doc.String("displayName"),
		AvatarURL:   doc.String("profileImage"),
		University:  doc.String("university"),
		Department:  doc.String("department"),
	}
}

// DisplayRecord is a membership record decorated with live profile data for
// rendering. Never persisted.
type DisplayRecord struct {
	ActorID     string
	DisplayName string
	AvatarURL   string
	University  string
	Body        string
	CreatedAt   time.Time
}

// ClubStats is the denormalized aggregate document maintained per club.
// TotalComments, TotalLikes, and TotalParticipants roll up across all of the
// club's events.
type ClubStats struct {
	ClubID            string
	TotalEvents       int64
	TotalMembers      int64
	TotalLikes        int64
	TotalComments     int64
	TotalParticipants int64
	TotalInteractions int64
	UpdatedAt         time.Time
}

// StatsFromDocument rebuilds club stats from the stored document.
func StatsFromDocument(doc docstore.Document) ClubStats {
	updatedAt, _ := time.Parse(time.RFC3339Nano, doc.String("lastUpdated"))

	return ClubStats{
		ClubID:            docstore.IDOf(doc.Path),
		TotalEvents:       doc.Int("totalEvents"),
		TotalMembers:      doc.Int("totalMembers"),
		TotalLikes:        doc.Int("totalLikes"),
		TotalComments:     doc.Int("totalComments"),
		TotalParticipants: doc.Int("totalParticipants"),
		TotalInteractions: doc.Int("totalInteractions"),
		UpdatedAt:         updatedAt,
	}
}
