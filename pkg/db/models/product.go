package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

// Product is the local mirror of one catalog listing. Rows are replaced
// wholesale (bulk upload or subscription emission), never patched field
// by field.
type Product struct {
	ID        string            `gorm:"column:id;type:text;primaryKey"`
	Name      string            `gorm:"column:name;not null"`
	Price     decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null"`
	Unit      enums.ProductUnit `gorm:"column:unit;type:text;not null"`
	Category  string            `gorm:"column:category;not null;default:'Other'"`
	Active    bool              `gorm:"column:active;not null;default:true"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
