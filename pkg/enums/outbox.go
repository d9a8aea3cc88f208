package enums

import "fmt"

// OutboxAggregateType identifies which mirrored collection an intent targets.
type OutboxAggregateType string

const (
	AggregateProduct      OutboxAggregateType = "product"
	AggregateCatalog      OutboxAggregateType = "catalog"
	AggregateAnnouncement OutboxAggregateType = "announcements"
	AggregateDailyGoal    OutboxAggregateType = "daily_goal"
	AggregatePins         OutboxAggregateType = "pins"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProduct,
	AggregateCatalog,
	AggregateAnnouncement,
	AggregateDailyGoal,
	AggregatePins,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names the remote mutation an outbox row carries.
type OutboxEventType string

const (
	EventProductAdded       OutboxEventType = "product_added"
	EventProductDeleted     OutboxEventType = "product_deleted"
	EventCatalogReplaced    OutboxEventType = "catalog_replaced"
	EventAnnouncementsSaved OutboxEventType = "announcements_saved"
	EventDailyGoalSaved     OutboxEventType = "daily_goal_saved"
	EventPinsSaved          OutboxEventType = "pins_saved"
)

var validOutboxEventTypes = []OutboxEventType{
	EventProductAdded,
	EventProductDeleted,
	EventCatalogReplaced,
	EventAnnouncementsSaved,
	EventDailyGoalSaved,
	EventPinsSaved,
}

// IsValid reports whether the value is a known OutboxEventType.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
