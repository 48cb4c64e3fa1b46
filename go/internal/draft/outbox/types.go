package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
)

// Record is one row of draft_session_outbox.
type Record struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	EventType events.Type     `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Envelope rebuilds the envelope the record was written from. The id is kept
// so JetStream can drop redeliveries.
func (r Record) Envelope() events.Envelope {
	return events.Envelope{
		ID:        r.ID,
		SessionID: r.SessionID,
		Type:      r.EventType,
		Timestamp: r.CreatedAt,
		Payload:   r.Payload,
	}
}

// RecordFromEnvelope is the inverse of Record.Envelope.
func RecordFromEnvelope(env events.Envelope) Record {
	return Record{
		ID:        env.ID,
		SessionID: env.SessionID,
		EventType: env.Type,
		Payload:   env.Payload,
		CreatedAt: env.Timestamp,
	}
}
