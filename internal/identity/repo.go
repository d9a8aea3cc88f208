package identity

import (
	"context"

	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
)

// Repository manages persistence for the station device row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	First(ctx context.Context) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a device repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) First(ctx context.Context) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) Create(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}
