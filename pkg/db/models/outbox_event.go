package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

// OutboxEvent is one queued remote-mirror intent. Rows are drained strictly
// in insertion order by a single worker so rapid writes to the same
// singleton document cannot overwrite each other out of order.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:text;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   string                    `gorm:"column:aggregate_id;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:text;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime;index"`
}
