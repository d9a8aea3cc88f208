package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is the station identity row. Exactly one row exists per
// installation; the token is generated once and never rotated.
type Device struct {
	ID        uuid.UUID `gorm:"column:id;type:text;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
