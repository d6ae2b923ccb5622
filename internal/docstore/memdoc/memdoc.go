// Package memdoc provides an in-memory docstore.Store with optimistic
// transactions and snapshot subscriptions. It backs tests and local
// development where no document backend is available.
package memdoc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"go.uber.org/zap"
)

type storedDoc struct {
	fields     docstore.Fields
	version    int64
	updateTime time.Time
}

type subscription struct {
	query    docstore.Query
	callback func(docstore.Snapshot)
	dirty    chan struct{}
	done     chan struct{}
}

// Store is an in-memory document store. All operations are safe for
// concurrent use.
type Store struct {
	mu           sync.Mutex
	docs         map[string]*storedDoc
	collVersions map[string]int64
	subs         map[int64]*subscription
	nextSubID    int64
	nextVersion  int64
	logger       *zap.Logger
	closed       bool
}

// New creates an empty in-memory store.
func New(logger *zap.Logger) *Store {
	return &Store{
		docs:         make(map[string]*storedDoc),
		collVersions: make(map[string]int64),
		subs:         make(map[int64]*subscription),
		logger:       logger.Named("memdoc"),
	}
}

// Get reads a single document.
func (s *Store) Get(_ context.Context, path string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(path)
}

func (s *Store) getLocked(path string) (docstore.Document, error) {
	doc, ok := s.docs[path]
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %q: %w", path, docstore.ErrNotFound)
	}

	return docstore.Document{
		Path:       path,
		Fields:     cloneFields(doc.fields),
		Version:    doc.version,
		UpdateTime: doc.updateTime,
	}, nil
}

// Set creates or fully replaces a document.
func (s *Store) Set(_ context.Context, path string, fields docstore.Fields) error {
	s.mu.Lock()
	s.setLocked(path, fields)
	touched := []string{docstore.CollectionOf(path)}
	s.bumpLocked(touched)
	s.mu.Unlock()

	s.notify(touched)

	return nil
}

// Update merges fields into an existing document, resolving Increment
// sentinels against the current value.
func (s *Store) Update(_ context.Context, path string, fields docstore.Fields) error {
	s.mu.Lock()

	if err := s.updateLocked(path, fields); err != nil {
		s.mu.Unlock()
		return err
	}

	touched := []string{docstore.CollectionOf(path)}
	s.bumpLocked(touched)
	s.mu.Unlock()

	s.notify(touched)

	return nil
}

// Delete removes a document. Missing documents are ignored.
func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()

	if _, ok := s.docs[path]; !ok {
		s.mu.Unlock()
		return nil
	}

	delete(s.docs, path)
	touched := []string{docstore.CollectionOf(path)}
	s.bumpLocked(touched)
	s.mu.Unlock()

	s.notify(touched)

	return nil
}

// Query reads a collection with equality filters, ordering, and a cap.
func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryLocked(q), nil
}

// ApplyBatch applies all writes atomically.
func (s *Store) ApplyBatch(_ context.Context, writes []docstore.Write) error {
	s.mu.Lock()

	touched := make([]string, 0, len(writes))

	for _, w := range writes {
		switch w.Kind {
		case docstore.WriteSet:
			s.setLocked(w.Path, w.Fields)
		case docstore.WriteUpdate:
			if err := s.updateLocked(w.Path, w.Fields); err != nil {
				s.mu.Unlock()
				return err
			}
		case docstore.WriteDelete:
			delete(s.docs, w.Path)
		}

		touched = append(touched, docstore.CollectionOf(w.Path))
	}

	s.bumpLocked(touched)
	s.mu.Unlock()

	s.notify(touched)

	return nil
}

// RunTransaction executes fn under optimistic concurrency control. Reads
// observe committed state; staged writes commit atomically, failing with
// ErrConflict when any document or collection read by fn changed since it
// was read.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx := &memTx{
		store:     s,
		readDocs:  make(map[string]int64),
		readColls: make(map[string]int64),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()

	// Validate every read against the current state.
	for path, version := range tx.readDocs {
		current, ok := s.docs[path]
		switch {
		case !ok && version != 0:
			s.mu.Unlock()
			s.logger.Debug("Transaction conflict on deleted document", zap.String("path", path))

			return fmt.Errorf("document %q deleted during transaction: %w", path, docstore.ErrConflict)
		case ok && current.version != version:
			s.mu.Unlock()
			s.logger.Debug("Transaction conflict on changed document", zap.String("path", path))

			return fmt.Errorf("document %q changed during transaction: %w", path, docstore.ErrConflict)
		}
	}

	for coll, version := range tx.readColls {
		if s.collVersions[coll] != version {
			s.mu.Unlock()
			s.logger.Debug("Transaction conflict on changed collection", zap.String("collection", coll))

			return fmt.Errorf("collection %q changed during transaction: %w", coll, docstore.ErrConflict)
		}
	}

	touched := make([]string, 0, len(tx.writes))

	for _, w := range tx.writes {
		switch w.Kind {
		case docstore.WriteSet:
			s.setLocked(w.Path, w.Fields)
		case docstore.WriteUpdate:
			if err := s.updateLocked(w.Path, w.Fields); err != nil {
				s.mu.Unlock()
				return err
			}
		case docstore.WriteDelete:
			delete(s.docs, w.Path)
		}

		touched = append(touched, docstore.CollectionOf(w.Path))
	}

	s.bumpLocked(touched)
	s.mu.Unlock()

	s.notify(touched)

	return nil
}

// Subscribe registers a snapshot listener for the query's collection. The
// callback receives the full current result after every mutation, starting
// with one immediate snapshot, and is never invoked concurrently.
func (s *Store) Subscribe(q docstore.Query, callback func(docstore.Snapshot)) (func(), error) {
	sub := &subscription{
		query:    q,
		callback: callback,
		dirty:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("subscribe: store closed: %w", docstore.ErrUnsupported)
	}

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = sub
	s.mu.Unlock()

	// Initial snapshot, then redeliver whenever the collection mutates.
	sub.dirty <- struct{}{}

	go s.dispatch(sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}

	return cancel, nil
}

// Close cancels all subscriptions and rejects new ones.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := s.subs
	s.subs = make(map[int64]*subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}

	return nil
}

func (s *Store) dispatch(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.dirty:
			s.mu.Lock()
			snapshot := docstore.Snapshot{Docs: s.queryLocked(sub.query)}
			s.mu.Unlock()

			sub.callback(snapshot)
		}
	}
}

func (s *Store) notify(collections []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		for _, coll := range collections {
			if sub.query.Collection == coll {
				select {
				case sub.dirty <- struct{}{}:
				default:
				}

				break
			}
		}
	}
}

func (s *Store) setLocked(path string, fields docstore.Fields) {
	resolved := make(docstore.Fields, len(fields))

	var base docstore.Fields
	if existing, ok := s.docs[path]; ok {
		base = existing.fields
	}

	for k, v := range fields {
		if delta, ok := docstore.IncrementDelta(v); ok {
			resolved[k] = numeric(base[k]) + delta
			continue
		}

		resolved[k] = v
	}

	s.nextVersion++
	s.docs[path] = &storedDoc{
		fields:     resolved,
		version:    s.nextVersion,
		updateTime: time.Now(),
	}
}

func (s *Store) updateLocked(path string, fields docstore.Fields) error {
	doc, ok := s.docs[path]
	if !ok {
		return fmt.Errorf("update %q: %w", path, docstore.ErrNotFound)
	}

	merged := cloneFields(doc.fields)

	for k, v := range fields {
		if delta, ok := docstore.IncrementDelta(v); ok {
			merged[k] = numeric(doc.fields[k]) + delta
			continue
		}

		merged[k] = v
	}

	s.nextVersion++
	doc.fields = merged
	doc.version = s.nextVersion
	doc.updateTime = time.Now()

	return nil
}

func (s *Store) bumpLocked(collections []string) {
	for _, coll := range collections {
		s.collVersions[coll]++
	}
}

func (s *Store) queryLocked(q docstore.Query) []docstore.Document {
	var results []docstore.Document

	for path, doc := range s.docs {
		if docstore.CollectionOf(path) != q.Collection {
			continue
		}

		if !matches(doc.fields, q.Filters) {
			continue
		}

		results = append(results, docstore.Document{
			Path:       path,
			Fields:     cloneFields(doc.fields),
			Version:    doc.version,
			UpdateTime: doc.updateTime,
		})
	}

	sortDocs(results, q)

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	return results
}

// memTx stages writes and records read versions for commit-time validation.
type memTx struct {
	store     *Store
	readDocs  map[string]int64
	readColls map[string]int64
	writes    []docstore.Write
}

func (t *memTx) Get(path string) (docstore.Document, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	doc, err := t.store.getLocked(path)
	if err != nil {
		t.readDocs[path] = 0
		return docstore.Document{}, err
	}

	t.readDocs[path] = doc.Version

	return doc, nil
}

func (t *memTx) Query(q docstore.Query) ([]docstore.Document, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.readColls[q.Collection] = t.store.collVersions[q.Collection]

	return t.store.queryLocked(q), nil
}

func (t *memTx) Set(path string, fields docstore.Fields) {
	t.writes = append(t.writes, docstore.Write{Kind: docstore.WriteSet, Path: path, Fields: cloneFields(fields)})
}

func (t *memTx) Update(path string, fields docstore.Fields) {
	t.writes = append(t.writes, docstore.Write{Kind: docstore.WriteUpdate, Path: path, Fields: cloneFields(fields)})
}

func (t *memTx) Delete(path string) {
	t.writes = append(t.writes, docstore.Write{Kind: docstore.WriteDelete, Path: path})
}

func matches(fields docstore.Fields, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !equalValue(fields[f.Field], f.Value) {
			return false
		}
	}

	return true
}

func equalValue(a, b any) bool {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return an == bn
		}

		return false
	}

	return a == b
}

func asNumber(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func numeric(v any) int64 {
	n, _ := asNumber(v)
	return n
}

func sortDocs(docs []docstore.Document, q docstore.Query) {
	if q.OrderBy == "" {
		sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
		return
	}

	sort.Slice(docs, func(i, j int) bool {
		less := lessValue(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
		if q.Descending {
			return !less && !equalValue(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
		}

		return less
	})
}

func lessValue(a, b any) bool {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return an < bn
		}
	}

	as, _ := a.(string)
	bs, _ := b.(string)

	return as < bs
}

func cloneFields(fields docstore.Fields) docstore.Fields {
	cloned := make(docstore.Fields, len(fields))
	for k, v := range fields {
		cloned[k] = v
	}

	return cloned
}
