package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

// CartItem is one line in the open cart. Name, price, and unit are
// snapshotted at add time so catalog changes never reprice an open cart.
// LineTotal is always recomputed from price and quantity on write.
type CartItem struct {
	ID        uuid.UUID         `gorm:"column:id;type:text;primaryKey"`
	CartID    uuid.UUID         `gorm:"column:cart_id;type:text;not null;index"`
	ProductID string            `gorm:"column:product_id;not null;default:''"`
	Name      string            `gorm:"column:name;not null"`
	Price     decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null"`
	Unit      enums.ProductUnit `gorm:"column:unit;type:text;not null"`
	Quantity  decimal.Decimal   `gorm:"column:quantity;type:numeric(10,3);not null"`
	LineTotal decimal.Decimal   `gorm:"column:line_total;type:numeric(10,2);not null"`
	Position  int               `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
