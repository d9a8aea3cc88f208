package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies the station and role that produced the event.
type ActorRef struct {
	DeviceID string `json:"deviceId"`
	Role     string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
