// Package docstore defines the document store abstraction the social layer
// is built on: path-addressed documents with atomic field updates, optimistic
// transactions, collection queries, and snapshot subscriptions.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict indicates a transaction lost an optimistic concurrency race
	// and may be retried.
	ErrConflict = errors.New("transaction conflict")
	// ErrPermissionDenied indicates the caller is not allowed to perform the
	// operation. Never retried.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnsupported indicates the backing store does not implement the
	// requested capability.
	ErrUnsupported = errors.New("operation not supported by store")
)

// Fields holds the mutable field set of one document.
type Fields map[string]any

// incrementValue is the sentinel carried through Update/Set calls to request
// an atomic server-side increment instead of an overwrite.
type incrementValue struct {
	Delta int64
}

// Increment returns a sentinel value that atomically adds delta to the
// current numeric value of a field. A missing field is treated as zero.
func Increment(delta int64) any {
	return incrementValue{Delta: delta}
}

// IncrementDelta reports whether v is an increment sentinel and returns its delta.
func IncrementDelta(v any) (int64, bool) {
	inc, ok := v.(incrementValue)
	if !ok {
		return 0, false
	}

	return inc.Delta, true
}

// Document is a point-in-time view of one stored document.
type Document struct {
	Path       string
	Fields     Fields
	Version    int64
	UpdateTime time.Time
}

// Int returns the named field coerced to int64. Missing or non-numeric
// fields read as zero.
func (d Document) Int(field string) int64 {
	switch v := d.Fields[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// String returns the named field as a string, or empty when missing.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Filter restricts a query to documents whose field equals the given value.
type Filter struct {
	Field string
	Value any
}

// Query describes a collection read: equality filters, an optional order
// field, and a result cap.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where appends an equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Value: value})
	return q
}

// Snapshot is a full re-read of a subscribed query, not a diff.
type Snapshot struct {
	Docs []Document
}

// WriteKind discriminates batch write operations.
type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteUpdate
	WriteDelete
)

// Write is one operation inside a batch.
type Write struct {
	Kind   WriteKind
	Path   string
	Fields Fields
}

// Tx exposes reads and staged writes inside one optimistic transaction.
// Reads observe the committed state at transaction start; writes are applied
// atomically at commit, or the whole transaction fails with ErrConflict when
// any document read or written changed underneath it.
type Tx interface {
	Get(path string) (Document, error)
	Query(q Query) ([]Document, error)
	Set(path string, fields Fields)
	Update(path string, fields Fields)
	Delete(path string)
}

// Store is the persistence boundary consumed by the social layer.
type Store interface {
	// Get reads a single document.
	Get(ctx context.Context, path string) (Document, error)
	// Set creates or fully replaces a document.
	Set(ctx context.Context, path string, fields Fields) error
	// Update merges fields into an existing document, resolving Increment
	// sentinels atomically. Returns ErrNotFound when the document is missing.
	Update(ctx context.Context, path string, fields Fields) error
	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, path string) error
	// Query reads a collection.
	Query(ctx context.Context, q Query) ([]Document, error)
	// RunTransaction executes fn under optimistic concurrency control.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ApplyBatch applies all writes as one atomic unit.
	ApplyBatch(ctx context.Context, writes []Write) error
	// Subscribe delivers a full snapshot of the query result after every
	// mutation touching its collection. Callbacks for one subscription are
	// never invoked concurrently. The returned function cancels delivery.
	Subscribe(q Query, callback func(Snapshot)) (func(), error)
	// Close releases store resources.
	Close() error
}

// JoinPath builds a document path from alternating collection and ID segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// CollectionOf returns the collection portion of a document path, which is
// everything up to the final segment.
func CollectionOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}

	return path[:idx]
}

// IDOf returns the final segment of a document path.
func IDOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}

	return path[idx+1:]
}

// IsConflict reports whether err is classified as a retryable write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
