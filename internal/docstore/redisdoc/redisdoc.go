// Package redisdoc implements docstore.Store on Redis via rueidis.
// Documents are JSON blobs keyed by path, with per-document and
// per-collection version counters driving optimistic transactions and
// poll-based snapshot subscriptions.
package redisdoc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/campushub/clubsync/internal/docstore"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	docPrefix     = "doc:"
	verPrefix     = "ver:"
	colPrefix     = "col:"
	colVerPrefix  = "colver:"
	defaultPollMs = 100
)

// commit applies a validated transaction in one atomic script. Return codes:
// 0 ok, 1 version conflict, 2 update target missing.
var commitScript = rueidis.NewLuaScript(`
local spec = cjson.decode(ARGV[1])
for _, r in ipairs(spec.reads or {}) do
  local v = tonumber(redis.call('GET', 'ver:' .. r.path) or '0')
  if v ~= r.version then return 1 end
end
for _, c in ipairs(spec.colls or {}) do
  local v = tonumber(redis.call('GET', 'colver:' .. c.collection) or '0')
  if v ~= c.version then return 1 end
end
for _, w in ipairs(spec.writes or {}) do
  local dk = 'doc:' .. w.path
  local vk = 'ver:' .. w.path
  if w.kind == 0 then
    local doc = {}
    for k, v in pairs(w.fields or {}) do
      if type(v) == 'table' and v.__inc ~= nil then
        local cur = redis.call('GET', dk)
        local old = 0
        if cur then
          local decoded = cjson.decode(cur)
          old = tonumber(decoded[k]) or 0
        end
        doc[k] = old + v.__inc
      else
        doc[k] = v
      end
    end
    redis.call('SET', dk, cjson.encode(doc))
    redis.call('INCR', vk)
    redis.call('SADD', 'col:' .. w.collection, w.path)
  elseif w.kind == 1 then
    local cur = redis.call('GET', dk)
    if not cur then return 2 end
    local doc = cjson.decode(cur)
    for k, v in pairs(w.fields or {}) do
      if type(v) == 'table' and v.__inc ~= nil then
        doc[k] = (tonumber(doc[k]) or 0) + v.__inc
      else
        doc[k] = v
      end
    end
    redis.call('SET', dk, cjson.encode(doc))
    redis.call('INCR', vk)
  else
    redis.call('DEL', dk, vk)
    redis.call('SREM', 'col:' .. w.collection, w.path)
  end
  redis.call('INCR', 'colver:' .. w.collection)
end
return 0
`)

type commitRead struct {
	Path    string `json:"path"`
	Version int64  `json:"version"`
}

type commitColl struct {
	Collection string `json:"collection"`
	Version    int64  `json:"version"`
}

type commitWrite struct {
	Kind       int            `json:"kind"`
	Path       string         `json:"path"`
	Collection string         `json:"collection"`
	Fields     map[string]any `json:"fields,omitempty"`
}

type commitSpec struct {
	Reads  []commitRead  `json:"reads,omitempty"`
	Colls  []commitColl  `json:"colls,omitempty"`
	Writes []commitWrite `json:"writes,omitempty"`
}

// Store is a Redis-backed document store.
type Store struct {
	client rueidis.Client
	poll   time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	cancel []chan struct{}
	closed bool
}

// New creates a store over an existing rueidis client. The caller owns the
// client; Close only stops subscription polling.
func New(client rueidis.Client, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		poll:   defaultPollMs * time.Millisecond,
		logger: logger.Named("redisdoc"),
	}
}

// Get reads a single document.
func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(docPrefix+path).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return docstore.Document{}, fmt.Errorf("get %q: %w", path, docstore.ErrNotFound)
		}

		return docstore.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	version, err := s.version(ctx, path)
	if err != nil {
		return docstore.Document{}, err
	}

	return decodeDocument(path, raw, version)
}

// Set creates or fully replaces a document.
func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	return s.commit(ctx, commitSpec{Writes: []commitWrite{{
		Kind:       int(docstore.WriteSet),
		Path:       path,
		Collection: docstore.CollectionOf(path),
		Fields:     encodeFields(fields),
	}}})
}

// Update merges fields into an existing document, resolving increments
// atomically inside the script.
func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	return s.commit(ctx, commitSpec{Writes: []commitWrite{{
		Kind:       int(docstore.WriteUpdate),
		Path:       path,
		Collection: docstore.CollectionOf(path),
		Fields:     encodeFields(fields),
	}}})
}

// Delete removes a document. Missing documents are ignored.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.commit(ctx, commitSpec{Writes: []commitWrite{{
		Kind:       int(docstore.WriteDelete),
		Path:       path,
		Collection: docstore.CollectionOf(path),
	}}})
}

// Query reads a collection. Filtering, ordering, and the cap are applied
// client-side over the collection's member set.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	docs, _, err := s.queryWithVersion(ctx, q)
	return docs, err
}

// ApplyBatch applies all writes in one atomic script call.
func (s *Store) ApplyBatch(ctx context.Context, writes []docstore.Write) error {
	spec := commitSpec{Writes: make([]commitWrite, 0, len(writes))}

	for _, w := range writes {
		spec.Writes = append(spec.Writes, commitWrite{
			Kind:       int(w.Kind),
			Path:       w.Path,
			Collection: docstore.CollectionOf(w.Path),
			Fields:     encodeFields(w.Fields),
		})
	}

	return s.commit(ctx, spec)
}

// RunTransaction executes fn optimistically: reads record document and
// collection versions, and the commit script validates all of them before
// applying the staged writes atomically.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx := &redisTx{
		store:     s,
		ctx:       ctx,
		readDocs:  make(map[string]int64),
		readColls: make(map[string]int64),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if tx.readErr != nil {
		return tx.readErr
	}

	spec := commitSpec{}
	for path, version := range tx.readDocs {
		spec.Reads = append(spec.Reads, commitRead{Path: path, Version: version})
	}

	for collection, version := range tx.readColls {
		spec.Colls = append(spec.Colls, commitColl{Collection: collection, Version: version})
	}

	spec.Writes = tx.writes

	return s.commit(ctx, spec)
}

// Subscribe polls the collection version counter and redelivers the full
// query result whenever it changes. One goroutine per subscription keeps
// callbacks serial.
func (s *Store) Subscribe(q docstore.Query, callback func(docstore.Snapshot)) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("subscribe: store closed: %w", docstore.ErrUnsupported)
	}

	done := make(chan struct{})
	s.cancel = append(s.cancel, done)
	s.mu.Unlock()

	go func() {
		ctx := context.Background()
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		var lastVersion int64 = -1

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				docs, version, err := s.queryWithVersion(ctx, q)
				if err != nil {
					s.logger.Warn("Subscription poll failed",
						zap.String("collection", q.Collection), zap.Error(err))

					continue
				}

				if version == lastVersion {
					continue
				}

				lastVersion = version

				callback(docstore.Snapshot{Docs: docs})
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() { close(done) })
	}, nil
}

// Close stops all subscription polling. The rueidis client is left open for
// its owner to close.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, done := range s.cancel {
		close(done)
	}

	s.cancel = nil

	return nil
}

func (s *Store) commit(ctx context.Context, spec commitSpec) error {
	payload, err := sonic.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	code, err := commitScript.Exec(ctx, s.client, nil, []string{string(payload)}).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to run commit script: %w", err)
	}

	switch code {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("commit rejected: %w", docstore.ErrConflict)
	case 2:
		return fmt.Errorf("update target missing: %w", docstore.ErrNotFound)
	default:
		return fmt.Errorf("commit script returned %d", code)
	}
}

func (s *Store) version(ctx context.Context, path string) (int64, error) {
	version, err := s.client.Do(ctx, s.client.B().Get().Key(verPrefix+path).Build()).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to get document version: %w", err)
	}

	return version, nil
}

func (s *Store) collectionVersion(ctx context.Context, collection string) (int64, error) {
	version, err := s.client.Do(ctx, s.client.B().Get().Key(colVerPrefix+collection).Build()).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to get collection version: %w", err)
	}

	return version, nil
}

func (s *Store) queryWithVersion(ctx context.Context, q docstore.Query) ([]docstore.Document, int64, error) {
	version, err := s.collectionVersion(ctx, q.Collection)
	if err != nil {
		return nil, 0, err
	}

	paths, err := s.client.Do(ctx, s.client.B().Smembers().Key(colPrefix+q.Collection).Build()).AsStrSlice()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list collection: %w", err)
	}

	docs := make([]docstore.Document, 0, len(paths))

	for _, path := range paths {
		doc, err := s.Get(ctx, path)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				// Deleted between SMEMBERS and GET.
				continue
			}

			return nil, 0, err
		}

		if !matches(doc.Fields, q.Filters) {
			continue
		}

		docs = append(docs, doc)
	}

	sortDocs(docs, q)

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs, version, nil
}

type redisTx struct {
	store     *Store
	ctx       context.Context
	readDocs  map[string]int64
	readColls map[string]int64
	writes    []commitWrite
	readErr   error
}

func (t *redisTx) Get(path string) (docstore.Document, error) {
	doc, err := t.store.Get(t.ctx, path)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			t.readDocs[path] = 0
			return docstore.Document{}, err
		}

		t.readErr = err

		return docstore.Document{}, err
	}

	t.readDocs[path] = doc.Version

	return doc, nil
}

func (t *redisTx) Query(q docstore.Query) ([]docstore.Document, error) {
	docs, version, err := t.store.queryWithVersion(t.ctx, q)
	if err != nil {
		t.readErr = err
		return nil, err
	}

	t.readColls[q.Collection] = version

	return docs, nil
}

func (t *redisTx) Set(path string, fields docstore.Fields) {
	t.writes = append(t.writes, commitWrite{
		Kind:       int(docstore.WriteSet),
		Path:       path,
		Collection: docstore.CollectionOf(path),
		Fields:     encodeFields(fields),
	})
}

func (t *redisTx) Update(path string, fields docstore.Fields) {
	t.writes = append(t.writes, commitWrite{
		Kind:       int(docstore.WriteUpdate),
		Path:       path,
		Collection: docstore.CollectionOf(path),
		Fields:     encodeFields(fields),
	})
}

func (t *redisTx) Delete(path string) {
	t.writes = append(t.writes, commitWrite{
		Kind:       int(docstore.WriteDelete),
		Path:       path,
		Collection: docstore.CollectionOf(path),
	})
}

// encodeFields rewrites increment sentinels into the {"__inc": n} shape the
// commit script resolves server-side.
func encodeFields(fields docstore.Fields) map[string]any {
	if fields == nil {
		return nil
	}

	encoded := make(map[string]any, len(fields))

	for k, v := range fields {
		if delta, ok := docstore.IncrementDelta(v); ok {
			encoded[k] = map[string]any{"__inc": delta}
			continue
		}

		encoded[k] = v
	}

	return encoded
}

func decodeDocument(path string, raw []byte, version int64) (docstore.Document, error) {
	fields := make(docstore.Fields)
	if err := sonic.Unmarshal(raw, &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("failed to decode document %q: %w", path, err)
	}

	return docstore.Document{Path: path, Fields: fields, Version: version}, nil
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

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func sortDocs(docs []docstore.Document, q docstore.Query) {
	if q.OrderBy == "" {
		sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
		return
	}

	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy]
		less := lessValue(a, b)

		if q.Descending {
			return !less && !equalValue(a, b)
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
