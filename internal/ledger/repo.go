package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/pagination"
)

// Repository manages persistence for completed orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error)
	Find(ctx context.Context, id string) (*models.Order, error)
	Delete(ctx context.Context, id string) (int64, error)
	ListByDateRange(ctx context.Context, start, end time.Time, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListAllBetween(ctx context.Context, start, end time.Time) ([]models.Order, error)
	ListPending(ctx context.Context) ([]models.Order, error)
	CountPending(ctx context.Context) (int64, error)
	MarkSynced(ctx context.Context, id string) error
	CountBetween(ctx context.Context, start, end time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// CreateIfAbsent inserts the order unless a row with its id already exists.
// Existing rows are left untouched; orders are immutable once recorded.
func (r *repository) CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) Find(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return 0, res.Error
	}
	// SQLite does not always enforce FK cascades; delete items explicitly.
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return res.RowsAffected, err
	}
	return res.RowsAffected, nil
}

func (r *repository) ListByDateRange(ctx context.Context, start, end time.Time, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	var orders []models.Order
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("created_at >= ? AND created_at <= ?", start, end)
	if cursor != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListAllBetween(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListPending(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("synced = ?", false).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("synced = ?", false).
		Count(&count).Error
	return count, err
}

func (r *repository) MarkSynced(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("synced", true).Error
}

func (r *repository) CountBetween(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Count(&count).Error
	return count, err
}
