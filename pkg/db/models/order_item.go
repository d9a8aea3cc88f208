package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

// OrderItem is a decoupled copy of a cart line taken at checkout. It carries
// no product reference on purpose: catalog edits must never reach history.
type OrderItem struct {
	ID        uuid.UUID         `gorm:"column:id;type:text;primaryKey"`
	OrderID   string            `gorm:"column:order_id;type:text;not null;index"`
	Name      string            `gorm:"column:name;not null"`
	Price     decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null"`
	Unit      enums.ProductUnit `gorm:"column:unit;type:text;not null"`
	Quantity  decimal.Decimal   `gorm:"column:quantity;type:numeric(10,3);not null"`
	LineTotal decimal.Decimal   `gorm:"column:line_total;type:numeric(10,2);not null"`
	Position  int               `gorm:"column:position;not null;default:0"`
}
