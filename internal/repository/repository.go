// Package repository implements the generic data-access layer: CRUD, upsert,
// list and count operations for one entity type mapped onto one table,
// executed against the request-scoped persistence session.
package repository

import (
	"context"
	"errors"
	"reflect"

	"github.com/uptrace/bun"

	"github.com/bartosz121/minerva/internal/platform/db"
)

// Repository defines the persistence operations for an entity type T keyed
// by an identifier type U.
type Repository[T any, U comparable] interface {
	Count(ctx context.Context, filters ...Filter) (int, error)
	Create(ctx context.Context, entity T) (T, error)
	CreateMany(ctx context.Context, entities []T) ([]T, error)
	Get(ctx context.Context, id U, filters ...Filter) (T, error)
	GetOne(ctx context.Context, id U) (T, error)
	GetOneOrNone(ctx context.Context, id U) (T, error)
	List(ctx context.Context, filters ...Filter) ([]T, error)
	ListAndCount(ctx context.Context, filters ...Filter) ([]T, int, error)
	Delete(ctx context.Context, id U) (T, error)
	DeleteMany(ctx context.Context, ids []U) ([]T, error)
	Update(ctx context.Context, entity T) (T, error)
	UpdateMany(ctx context.Context, entities []T) ([]T, error)
	Upsert(ctx context.Context, entity T) (T, error)
	UpsertMany(ctx context.Context, entities []T) ([]T, error)
	Exists(ctx context.Context, filters ...Filter) (bool, error)
}

// ModelHandlers binds a bun model to the generic engine.
type ModelHandlers[T any, U comparable] struct {
	// NewRecord allocates an empty record to scan into.
	NewRecord func() T
	// GetID reads the identifier off a record.
	GetID func(T) U
	// IDColumn is the identifier column name, e.g. "id" or "token".
	IDColumn string
	// Relations are eagerly loaded on every read, in declaration order.
	Relations []string
	// Clone produces the detached copy returned when auto-expunge is on.
	// When nil a shallow copy of the record is used.
	Clone func(T) T
}

// Option configures side-effect policy on a repository. These are policy
// toggles fixed at construction, not per-call overrides.
type Option func(*settings)

type settings struct {
	autoCommit  bool
	autoRefresh bool
	autoExpunge bool
}

// WithAutoCommit commits the session after every write instead of leaving
// durability to the request boundary.
func WithAutoCommit() Option {
	return func(s *settings) { s.autoCommit = true }
}

// WithoutAutoRefresh skips the authoritative re-read after writes.
func WithoutAutoRefresh() Option {
	return func(s *settings) { s.autoRefresh = false }
}

// WithAutoExpunge detaches returned records from the session by handing the
// caller a copy, so later mutations do not alias live state.
func WithAutoExpunge() Option {
	return func(s *settings) { s.autoExpunge = true }
}

// BunRepository implements Repository on top of a bun-mapped table.
type BunRepository[T any, U comparable] struct {
	sess     *db.Session
	handlers ModelHandlers[T, U]
	settings settings
}

// NewRepository constructs a repository bound to the given session.
// Defaults: writes are flushed into the session transaction but not
// committed, written records are refreshed from storage, and returned
// records are not detached.
func NewRepository[T any, U comparable](sess *db.Session, handlers ModelHandlers[T, U], opts ...Option) *BunRepository[T, U] {
	s := settings{autoRefresh: true}
	for _, opt := range opts {
		opt(&s)
	}
	return &BunRepository[T, U]{sess: sess, handlers: handlers, settings: s}
}

// Session exposes the underlying persistence session.
func (r *BunRepository[T, U]) Session() *db.Session {
	return r.sess
}

// Count returns the number of rows matching the filters.
func (r *BunRepository[T, U]) Count(ctx context.Context, filters ...Filter) (int, error) {
	q := r.sess.IDB().NewSelect().Model(r.handlers.NewRecord())
	q = applySelectFilters(q, filters)
	count, err := q.Count(ctx)
	if err != nil {
		return 0, normalizeError(err)
	}
	return count, nil
}

// Create inserts one row and returns it with generated fields assigned.
func (r *BunRepository[T, U]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if _, err := r.sess.IDB().NewInsert().Model(entity).Exec(ctx); err != nil {
		return zero, normalizeError(err)
	}
	if err := r.flushOrCommit(); err != nil {
		return zero, err
	}
	entity, err := r.refresh(ctx, entity)
	if err != nil {
		return zero, err
	}
	return r.expunge(entity), nil
}

// CreateMany batch-inserts rows within the session transaction.
func (r *BunRepository[T, U]) CreateMany(ctx context.Context, entities []T) ([]T, error) {
	if len(entities) == 0 {
		return entities, nil
	}
	if _, err := r.sess.IDB().NewInsert().Model(&entities).Exec(ctx); err != nil {
		return nil, normalizeError(err)
	}
	if err := r.flushOrCommit(); err != nil {
		return nil, err
	}
	out := make([]T, len(entities))
	for i, entity := range entities {
		out[i] = r.expunge(entity)
	}
	return out, nil
}

// Get fetches a row by identifier, optionally narrowed by extra filters.
func (r *BunRepository[T, U]) Get(ctx context.Context, id U, filters ...Filter) (T, error) {
	var zero T
	entity, found, err := r.fetch(ctx, id, filters)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, ErrNotFound
	}
	return r.expunge(entity), nil
}

// GetOne fetches a row by identifier only.
func (r *BunRepository[T, U]) GetOne(ctx context.Context, id U) (T, error) {
	return r.Get(ctx, id)
}

// GetOneOrNone fetches a row by identifier, returning the zero value on a
// miss instead of an error.
func (r *BunRepository[T, U]) GetOneOrNone(ctx context.Context, id U) (T, error) {
	var zero T
	entity, found, err := r.fetch(ctx, id, nil)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, nil
	}
	return r.expunge(entity), nil
}

// List returns all rows matching the filters in storage order.
func (r *BunRepository[T, U]) List(ctx context.Context, filters ...Filter) ([]T, error) {
	var entities []T
	q := r.sess.IDB().NewSelect().Model(&entities)
	q = r.withRelations(q)
	q = applySelectFilters(q, filters)
	if err := q.Scan(ctx); err != nil {
		return nil, normalizeError(err)
	}
	for i, entity := range entities {
		entities[i] = r.expunge(entity)
	}
	return entities, nil
}

// ListAndCount returns the matching rows together with a separate full count
// of the same filter set.
func (r *BunRepository[T, U]) ListAndCount(ctx context.Context, filters ...Filter) ([]T, int, error) {
	var entities []T
	q := r.sess.IDB().NewSelect().Model(&entities)
	q = r.withRelations(q)
	q = applySelectFilters(q, filters)
	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, normalizeError(err)
	}
	for i, entity := range entities {
		entities[i] = r.expunge(entity)
	}
	return entities, count, nil
}

// Delete removes the row with the given identifier and returns the deleted
// snapshot. Missing rows fail with ErrNotFound.
func (r *BunRepository[T, U]) Delete(ctx context.Context, id U) (T, error) {
	var zero T
	entity, found, err := r.fetch(ctx, id, nil)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, ErrNotFound
	}
	if err := r.deleteByID(ctx, id); err != nil {
		return zero, err
	}
	if err := r.flushOrCommit(); err != nil {
		return zero, err
	}
	return r.expunge(entity), nil
}

// DeleteMany removes each id individually, collecting deleted snapshots.
// An id with no matching row contributes nothing.
func (r *BunRepository[T, U]) DeleteMany(ctx context.Context, ids []U) ([]T, error) {
	deleted := make([]T, 0, len(ids))
	for _, id := range ids {
		entity, found, err := r.fetch(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if err := r.deleteByID(ctx, id); err != nil {
			return nil, err
		}
		deleted = append(deleted, r.expunge(entity))
	}
	if err := r.flushOrCommit(); err != nil {
		return nil, err
	}
	return deleted, nil
}

// Update verifies the row exists, overwrites all of its fields and returns
// the refreshed record.
func (r *BunRepository[T, U]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	id := r.handlers.GetID(entity)
	_, found, err := r.fetch(ctx, id, nil)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, ErrNotFound
	}
	return r.applyUpdate(ctx, entity, id)
}

// UpdateMany updates each record in turn on the shared session; a mid-batch
// failure aborts the surrounding transaction.
func (r *BunRepository[T, U]) UpdateMany(ctx context.Context, entities []T) ([]T, error) {
	out := make([]T, 0, len(entities))
	for _, entity := range entities {
		updated, err := r.Update(ctx, entity)
		if err != nil {
			return nil, err
		}
		out = append(out, updated)
	}
	return out, nil
}

// Upsert inserts the record when its identifier is unknown, otherwise
// overwrites the existing row. It never fails with ErrNotFound.
func (r *BunRepository[T, U]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	id := r.handlers.GetID(entity)
	_, found, err := r.fetch(ctx, id, nil)
	if err != nil {
		return zero, err
	}
	if !found {
		return r.Create(ctx, entity)
	}
	return r.applyUpdate(ctx, entity, id)
}

// UpsertMany upserts each record in turn on the shared session.
func (r *BunRepository[T, U]) UpsertMany(ctx context.Context, entities []T) ([]T, error) {
	out := make([]T, 0, len(entities))
	for _, entity := range entities {
		upserted, err := r.Upsert(ctx, entity)
		if err != nil {
			return nil, err
		}
		out = append(out, upserted)
	}
	return out, nil
}

// Exists reports whether any row matches the filters.
func (r *BunRepository[T, U]) Exists(ctx context.Context, filters ...Filter) (bool, error) {
	count, err := r.Count(ctx, filters...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BunRepository[T, U]) fetch(ctx context.Context, id U, filters []Filter) (T, bool, error) {
	var zero T
	entity := r.handlers.NewRecord()
	q := r.sess.IDB().NewSelect().Model(entity)
	q = r.withRelations(q)
	q = q.Where("? = ?", bun.Ident(r.handlers.IDColumn), id)
	q = applySelectFilters(q, filters)
	if err := q.Scan(ctx); err != nil {
		norm := normalizeError(err)
		if errors.Is(norm, ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, norm
	}
	return entity, true, nil
}

func (r *BunRepository[T, U]) applyUpdate(ctx context.Context, entity T, id U) (T, error) {
	var zero T
	q := r.sess.IDB().NewUpdate().Model(entity).
		Where("? = ?", bun.Ident(r.handlers.IDColumn), id)
	if _, err := q.Exec(ctx); err != nil {
		return zero, normalizeError(err)
	}
	if err := r.flushOrCommit(); err != nil {
		return zero, err
	}
	entity, err := r.refresh(ctx, entity)
	if err != nil {
		return zero, err
	}
	return r.expunge(entity), nil
}

func (r *BunRepository[T, U]) deleteByID(ctx context.Context, id U) error {
	q := r.sess.IDB().NewDelete().Model(r.handlers.NewRecord()).
		Where("? = ?", bun.Ident(r.handlers.IDColumn), id)
	if _, err := q.Exec(ctx); err != nil {
		return normalizeError(err)
	}
	return nil
}

func (r *BunRepository[T, U]) withRelations(q *bun.SelectQuery) *bun.SelectQuery {
	for _, rel := range r.handlers.Relations {
		q = q.Relation(rel)
	}
	return q
}

// flushOrCommit enforces the commit policy after a write. Statements are
// already visible inside the session transaction; committing here ends that
// transaction instead of leaving durability to the request boundary.
func (r *BunRepository[T, U]) flushOrCommit() error {
	if !r.settings.autoCommit {
		return nil
	}
	if err := r.sess.Commit(); err != nil {
		return normalizeError(err)
	}
	return nil
}

// refresh re-reads the authoritative row, picking up storage-side defaults
// and eager relations.
func (r *BunRepository[T, U]) refresh(ctx context.Context, entity T) (T, error) {
	if !r.settings.autoRefresh {
		return entity, nil
	}
	var zero T
	fresh, found, err := r.fetch(ctx, r.handlers.GetID(entity), nil)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, ErrNotFound
	}
	return fresh, nil
}

func (r *BunRepository[T, U]) expunge(entity T) T {
	if !r.settings.autoExpunge {
		return entity
	}
	if r.handlers.Clone != nil {
		return r.handlers.Clone(entity)
	}
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		copied := reflect.New(v.Elem().Type())
		copied.Elem().Set(v.Elem())
		return copied.Interface().(T)
	}
	return entity
}

var _ Repository[*struct{ ID int64 }, int64] = (*BunRepository[*struct{ ID int64 }, int64])(nil)
