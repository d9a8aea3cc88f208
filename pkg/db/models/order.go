package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

// DiscountSnapshot freezes the discount applied at checkout, including the
// resolved amount, so later rule changes cannot alter history.
type DiscountSnapshot struct {
	Type   enums.DiscountType `json:"type"`
	Value  decimal.Decimal    `json:"value"`
	Label  string             `json:"label"`
	Amount decimal.Decimal    `json:"amount"`
}

// Order is one completed sale. Immutable after creation except for deletion
// (undo or admin cleanup) and the synced flag flip when the remote write
// eventually lands.
type Order struct {
	ID            string              `gorm:"column:id;type:text;primaryKey"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Discount      *DiscountSnapshot   `gorm:"column:discount;serializer:json"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'cash'"`
	CreatedAt     time.Time           `gorm:"column:created_at;index"`
	CreatedBy     string              `gorm:"column:created_by;not null"`
	Synced        bool                `gorm:"column:synced;not null;default:false"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}
