package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

// CartRecord is the open cart for one station. At most one row per device;
// the discount lives on the record because only a single discount can be
// active at a time.
type CartRecord struct {
	ID            uuid.UUID          `gorm:"column:id;type:text;primaryKey"`
	DeviceID      uuid.UUID          `gorm:"column:device_id;type:text;not null;uniqueIndex"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:text;not null;default:'none'"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(10,2);not null;default:0"`
	DiscountLabel string             `gorm:"column:discount_label;not null;default:''"`
	Items         []CartItem         `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
