// Package pgdoc implements docstore.Store on PostgreSQL via bun. Documents
// live as JSONB rows keyed by path; serializable transactions back optimistic
// concurrency, with serialization failures surfaced as docstore.ErrConflict.
package pgdoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// DocumentRow is a single stored document.
type DocumentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Path       string         `bun:"path,pk"`
	Collection string         `bun:"collection,notnull"`
	Fields     map[string]any `bun:"fields,type:jsonb,notnull"`
	Version    int64          `bun:"version,notnull,default:0"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// Store is a PostgreSQL-backed document store.
type Store struct {
	db     *bun.DB
	logger *zap.Logger
}

// New creates a store over an existing bun handle.
func New(db *bun.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.Named("pgdoc"),
	}
}

// Setup creates the documents table and its collection index.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*DocumentRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*DocumentRow)(nil)).
		Index("idx_documents_collection").
		Column("collection").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create collection index: %w", err)
	}

	return nil
}

// Get reads a single document.
func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	var row DocumentRow

	err := s.db.NewSelect().
		Model(&row).
		Where("path = ?", path).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, fmt.Errorf("get %q: %w", path, docstore.ErrNotFound)
		}

		return docstore.Document{}, fmt.Errorf("failed to get document: %w", classify(err))
	}

	return rowToDocument(row), nil
}

// Set creates or fully replaces a document, resolving increment sentinels
// against the previous row inside one serializable transaction.
func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	return s.runSerializable(ctx, func(ctx context.Context, tx bun.Tx) error {
		return setRow(ctx, tx, path, fields)
	})
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	return s.runSerializable(ctx, func(ctx context.Context, tx bun.Tx) error {
		return updateRow(ctx, tx, path, fields)
	})
}

// Delete removes a document. Missing documents are ignored.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.runSerializable(ctx, func(ctx context.Context, tx bun.Tx) error {
		return deleteRow(ctx, tx, path)
	})
}

// Query reads a collection. Rows are fetched by collection and filtered,
// ordered, and capped in memory so all backends share one set of query
// semantics.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	var rows []DocumentRow

	err := s.db.NewSelect().
		Model(&rows).
		Where("collection = ?", q.Collection).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", classify(err))
	}

	docs := make([]docstore.Document, 0, len(rows))

	for _, row := range rows {
		doc := rowToDocument(row)
		if !matches(doc.Fields, q.Filters) {
			continue
		}

		docs = append(docs, doc)
	}

	sortDocs(docs, q)

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs, nil
}

// ApplyBatch applies all writes inside one serializable transaction.
func (s *Store) ApplyBatch(ctx context.Context, writes []docstore.Write) error {
	return s.runSerializable(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, w := range writes {
			var err error

			switch w.Kind {
			case docstore.WriteSet:
				err = setRow(ctx, tx, w.Path, w.Fields)
			case docstore.WriteUpdate:
				err = updateRow(ctx, tx, w.Path, w.Fields)
			case docstore.WriteDelete:
				err = deleteRow(ctx, tx, w.Path)
			}

			if err != nil {
				return err
			}
		}

		return nil
	})
}

// RunTransaction executes fn inside a serializable transaction. Postgres
// serialization failures come back as docstore.ErrConflict so callers can
// retry the way they do against the other backends.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return s.runSerializable(ctx, func(ctx context.Context, tx bun.Tx) error {
		pt := &pgTx{ctx: ctx, tx: tx}

		if err := fn(ctx, pt); err != nil {
			return err
		}

		return pt.flush()
	})
}

// Subscribe is not supported on the PostgreSQL backend.
func (s *Store) Subscribe(_ docstore.Query, _ func(docstore.Snapshot)) (func(), error) {
	return nil, fmt.Errorf("subscriptions require the memory or redis backend: %w", docstore.ErrUnsupported)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runSerializable(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable},
		func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	if err != nil {
		return classify(err)
	}

	return nil
}

// classify maps PostgreSQL serialization failures and deadlocks onto
// docstore.ErrConflict and leaves everything else intact.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgerr *pgdriver.Error
	if errors.As(err, &pgerr) {
		switch pgerr.Field('C') {
		case "40001", // serialization_failure
			"40P01": // deadlock_detected
			return fmt.Errorf("%w: %w", docstore.ErrConflict, err)
		}
	}

	return err
}

type pgTx struct {
	ctx    context.Context
	tx     bun.Tx
	writes []docstore.Write
}

func (t *pgTx) Get(path string) (docstore.Document, error) {
	var row DocumentRow

	err := t.tx.NewSelect().
		Model(&row).
		Where("path = ?", path).
		Scan(t.ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, fmt.Errorf("get %q: %w", path, docstore.ErrNotFound)
		}

		return docstore.Document{}, fmt.Errorf("failed to get document: %w", classify(err))
	}

	return rowToDocument(row), nil
}

func (t *pgTx) Query(q docstore.Query) ([]docstore.Document, error) {
	var rows []DocumentRow

	err := t.tx.NewSelect().
		Model(&rows).
		Where("collection = ?", q.Collection).
		Scan(t.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", classify(err))
	}

	docs := make([]docstore.Document, 0, len(rows))

	for _, row := range rows {
		doc := rowToDocument(row)
		if !matches(doc.Fields, q.Filters) {
			continue
		}

		docs = append(docs, doc)
	}

	sortDocs(docs, q)

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs, nil
}

func (t *pgTx) Set(path string, fields docstore.Fields) {
	t.writes = append(t.writes, docstore.Write{Kind: docstore.WriteSet, Path: path, Fields: fields})
}

func (t *pgTx) Update(path string, fields docstore.Fields) {
	t.writes = append(t.writes, docstore.Write{Kind: docstore.WriteUpdate, Path: path, Fields: fields})
}

func (t *pgTx) Delete(path string) {
	t.writes = append(t.writes, docstore.Write{Kind: docstore.WriteDelete, Path: path})
}

func (t *pgTx) flush() error {
	for _, w := range t.writes {
		var err error

		switch w.Kind {
		case docstore.WriteSet:
			err = setRow(t.ctx, t.tx, w.Path, w.Fields)
		case docstore.WriteUpdate:
			err = updateRow(t.ctx, t.tx, w.Path, w.Fields)
		case docstore.WriteDelete:
			err = deleteRow(t.ctx, t.tx, w.Path)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func setRow(ctx context.Context, tx bun.Tx, path string, fields docstore.Fields) error {
	prior, version, err := currentFields(ctx, tx, path)
	if err != nil {
		return err
	}

	row := DocumentRow{
		Path:       path,
		Collection: docstore.CollectionOf(path),
		Fields:     resolveFields(nil, prior, fields),
		Version:    version + 1,
		UpdatedAt:  time.Now().UTC(),
	}

	if _, err := tx.NewInsert().
		Model(&row).
		On("CONFLICT (path) DO UPDATE").
		Set("fields = EXCLUDED.fields").
		Set("version = EXCLUDED.version").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to set document: %w", classify(err))
	}

	return nil
}

func updateRow(ctx context.Context, tx bun.Tx, path string, fields docstore.Fields) error {
	var row DocumentRow

	err := tx.NewSelect().
		Model(&row).
		Where("path = ?", path).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update %q: %w", path, docstore.ErrNotFound)
		}

		return fmt.Errorf("failed to read document for update: %w", classify(err))
	}

	row.Fields = resolveFields(row.Fields, row.Fields, fields)
	row.Version++
	row.UpdatedAt = time.Now().UTC()

	if _, err := tx.NewUpdate().
		Model(&row).
		WherePK().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to update document: %w", classify(err))
	}

	return nil
}

func deleteRow(ctx context.Context, tx bun.Tx, path string) error {
	if _, err := tx.NewDelete().
		Model((*DocumentRow)(nil)).
		Where("path = ?", path).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document: %w", classify(err))
	}

	return nil
}

// currentFields returns the stored fields and version for a path, or an
// empty map and zero version when the document does not exist.
func currentFields(ctx context.Context, tx bun.Tx, path string) (map[string]any, int64, error) {
	var row DocumentRow

	err := tx.NewSelect().
		Model(&row).
		Where("path = ?", path).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, 0, nil
		}

		return nil, 0, fmt.Errorf("failed to read document: %w", classify(err))
	}

	return row.Fields, row.Version, nil
}

// resolveFields merges incoming fields over base, turning Increment
// sentinels into concrete values computed from prior state.
func resolveFields(base, prior map[string]any, fields docstore.Fields) map[string]any {
	merged := make(map[string]any, len(base)+len(fields))

	for k, v := range base {
		merged[k] = v
	}

	for k, v := range fields {
		if delta, ok := docstore.IncrementDelta(v); ok {
			merged[k] = toInt64(prior[k]) + delta
			continue
		}

		merged[k] = v
	}

	return merged
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func rowToDocument(row DocumentRow) docstore.Document {
	fields := make(docstore.Fields, len(row.Fields))
	for k, v := range row.Fields {
		fields[k] = v
	}

	return docstore.Document{
		Path:       row.Path,
		Fields:     fields,
		Version:    row.Version,
		UpdateTime: row.UpdatedAt,
	}
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
