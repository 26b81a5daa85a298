package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/sentinel/internal/errors"
)

// EntityRepository provides the row-level operations shared by every
// persisted entity type. None of the operations span a transaction.
type EntityRepository[T any] interface {
	// Get returns the row with id, or an error wrapping ErrNotFound.
	Get(ctx context.Context, id uint) (*T, error)
	List(ctx context.Context, filter Filter) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Create(ctx context.Context, entity *T) error
	// Update writes every column of entity, which must carry its id.
	Update(ctx context.Context, entity *T) error
	// Delete removes the row with id. Deleting a missing row wraps ErrNotFound.
	Delete(ctx context.Context, id uint) error
}

// gormRepository implements EntityRepository with GORM.
type gormRepository[T any] struct {
	db   *gorm.DB
	name string
}

// NewEntityRepository creates an EntityRepository for T. name is used in
// error messages.
func NewEntityRepository[T any](db *gorm.DB, name string) EntityRepository[T] {
	return &gormRepository[T]{db: db, name: name}
}

// Get returns a single row by primary key.
func (r *gormRepository[T]) Get(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %d: %w", r.name, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s %d: %w", r.name, id, err)
	}
	return &entity, nil
}

// List returns rows matching filter ordered by id.
func (r *gormRepository[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	var rows []T
	query := filter.page(filter.apply(r.db.WithContext(ctx).Model(new(T))))
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.name, err)
	}
	return rows, nil
}

// Count returns the number of rows matching filter, ignoring paging.
func (r *gormRepository[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	if err := filter.apply(r.db.WithContext(ctx).Model(new(T))).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.name, err)
	}
	return total, nil
}

// Create inserts entity and assigns its id.
func (r *gormRepository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create %s: %w", r.name, err)
	}
	return nil
}

// Update saves all columns of entity.
func (r *gormRepository[T]) Update(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("failed to update %s: %w", r.name, err)
	}
	return nil
}

// Delete removes a row by primary key.
func (r *gormRepository[T]) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(new(T), id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s %d: %w", r.name, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", r.name, id, ErrNotFound)
	}
	return nil
}
