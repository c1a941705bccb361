package repository

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository is the minimal write surface this module decorates. Read paths
// are deliberately absent; the protocol only cares about data mutation.
type Repository[T any] interface {
	// Insert persists a single entity.
	Insert(ctx context.Context, entity *T) error

	// InsertMany persists a batch of entities.
	InsertMany(ctx context.Context, entities []*T) error

	// Update updates a single entity by primary key.
	Update(ctx context.Context, entity *T) error

	// Delete deletes a single entity by primary key.
	Delete(ctx context.Context, entity *T) error

	// DeleteMany deletes a batch of entities by primary key.
	DeleteMany(ctx context.Context, entities []*T) error

	// UpdateQuery runs a bulk update statement ("UPDATE Entity SET ...")
	// and returns the number of affected rows.
	UpdateQuery(ctx context.Context, query string, args ...any) (int64, error)

	// DeleteQuery runs a bulk delete statement ("DELETE FROM Entity ...")
	// and returns the number of affected rows.
	DeleteQuery(ctx context.Context, query string, args ...any) (int64, error)

	// Exec runs a native statement or stored procedure. Callers must attach
	// eviction hints; the statement text is never parsed.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// BunRepository implements Repository over a bun.IDB (a *bun.DB or an open
// bun.Tx, so writes participate in the caller's transaction).
type BunRepository[T any] struct {
	db bun.IDB
}

// NewBunRepository creates a bun-backed repository.
func NewBunRepository[T any](db bun.IDB) *BunRepository[T] {
	return &BunRepository[T]{db: db}
}

// Insert persists a single entity.
func (r *BunRepository[T]) Insert(ctx context.Context, entity *T) error {
	_, err := r.db.NewInsert().Model(entity).Exec(ctx)
	return err
}

// InsertMany persists a batch of entities.
func (r *BunRepository[T]) InsertMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	return err
}

// Update updates a single entity by primary key.
func (r *BunRepository[T]) Update(ctx context.Context, entity *T) error {
	_, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	return err
}

// Delete deletes a single entity by primary key.
func (r *BunRepository[T]) Delete(ctx context.Context, entity *T) error {
	_, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	return err
}

// DeleteMany deletes a batch of entities by primary key.
func (r *BunRepository[T]) DeleteMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := r.db.NewDelete().Model(&entities).WherePK().Exec(ctx)
	return err
}

// UpdateQuery runs a bulk update statement.
func (r *BunRepository[T]) UpdateQuery(ctx context.Context, query string, args ...any) (int64, error) {
	return r.exec(ctx, query, args...)
}

// DeleteQuery runs a bulk delete statement.
func (r *BunRepository[T]) DeleteQuery(ctx context.Context, query string, args ...any) (int64, error) {
	return r.exec(ctx, query, args...)
}

// Exec runs a native statement or stored procedure.
func (r *BunRepository[T]) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return r.exec(ctx, query, args...)
}

func (r *BunRepository[T]) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows; the write succeeded.
		return 0, nil
	}
	return affected, nil
}
