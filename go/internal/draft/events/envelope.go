package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form shared by the websocket gateway, JetStream and the outbox.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope validates ev and wraps it for transport.
func NewEnvelope(sessionID uuid.UUID, ev Event, now time.Time) (Envelope, error) {
	if ev == nil {
		return Envelope{}, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if err := ev.Validate(); err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", ev.Type(), err)
	}
	return Envelope{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      ev.Type(),
		Timestamp: now.UTC(),
		Payload:   payload,
	}, nil
}

// Decode parses an envelope payload back into its typed event.
func Decode(env Envelope) (Event, error) {
	switch env.Type {
	case TypePickMade:
		var e PickMade
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return e, nil
	case TypeUserOnClock:
		var e UserOnClock
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return e, nil
	case TypeStatusChange:
		var e StatusChange
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return e, nil
	case TypeSyncError:
		var e SyncError
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return e, nil
	case TypeAuthRequired:
		var e AuthRequired
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, env.Type)
	}
}
