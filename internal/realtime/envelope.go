package realtime

import (
	"encoding/json"
	"time"

	"cafe_pos_backend/internal/models"

	"github.com/google/uuid"
)

// Envelope is the wire form of every realtime event.
type Envelope struct {
	ID         string           `json:"id"`
	Type       models.EventKind `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    models.Event     `json:"payload"`
}

// NewEnvelope wraps event with a fresh id.
func NewEnvelope(event models.Event, occurredAt time.Time) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       event.Kind(),
		OccurredAt: occurredAt.UTC(),
		Payload:    event,
	}
}

func marshalEvent(event models.Event, occurredAt time.Time) ([]byte, error) {
	return json.Marshal(NewEnvelope(event, occurredAt))
}
