package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
)

// Channel delivers session events to one destination. Implementations must be
// safe for concurrent use and must not block on slow consumers.
type Channel interface {
	Emit(ctx context.Context, sessionID uuid.UUID, ev events.Event) error
}

// Fanout emits each event to every channel in order. A failing channel does not
// stop delivery to the rest; all failures are returned joined.
type Fanout struct {
	channels []Channel
}

var _ Channel = (*Fanout)(nil)

func NewFanout(channels ...Channel) *Fanout {
	return &Fanout{channels: channels}
}

func (f *Fanout) Add(ch Channel) {
	f.channels = append(f.channels, ch)
}

func (f *Fanout) Emit(ctx context.Context, sessionID uuid.UUID, ev events.Event) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.Emit(ctx, sessionID, ev); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// LogChannel writes events to the global logger.
type LogChannel struct{}

var _ Channel = LogChannel{}

func (LogChannel) Emit(_ context.Context, sessionID uuid.UUID, ev events.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	level := zerolog.InfoLevel
	switch ev.(type) {
	case events.SyncError, events.AuthRequired:
		level = zerolog.WarnLevel
	}

	e := log.WithLevel(level)
	switch v := ev.(type) {
	case events.PickMade:
		e = e.Int("pick_number", v.PickNumber).Str("player_id", v.PlayerID).Bool("is_user_pick", v.IsUserPick)
	case events.UserOnClock:
		e = e.Int("pick_number", v.PickNumber).Int("round", v.Round)
	case events.StatusChange:
		e = e.Str("from", string(v.From)).Str("to", string(v.To)).Str("reason", v.Reason)
	case events.SyncError:
		e = e.Str("kind", string(v.Kind)).Str("message", v.Message).Int("consecutive_failures", v.ConsecutiveFailures)
	case events.AuthRequired:
		e = e.Str("message", v.Message)
	}
	e.Str("session_id", sessionID.String()).
		Str("event_type", string(ev.Type())).
		Msg("session event")
	return nil
}

// Memory records envelopes in emit order. Used by tests and the local runner.
type Memory struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	envelopes []events.Envelope
}

var _ Channel = (*Memory)(nil)

func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{clock: clock}
}

func (m *Memory) Emit(_ context.Context, sessionID uuid.UUID, ev events.Event) error {
	env, err := events.NewEnvelope(sessionID, ev, m.clock.Now())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopes = append(m.envelopes, env)
	return nil
}

// Envelopes returns everything emitted so far.
func (m *Memory) Envelopes() []events.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Envelope(nil), m.envelopes...)
}

// Types returns the event types emitted for one session, in order.
func (m *Memory) Types(sessionID uuid.UUID) []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Type
	for _, env := range m.envelopes {
		if env.SessionID == sessionID {
			out = append(out, env.Type)
		}
	}
	return out
}

// Events decodes the events emitted for one session, in order.
func (m *Memory) Events(sessionID uuid.UUID) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Event
	for _, env := range m.envelopes {
		if env.SessionID != sessionID {
			continue
		}
		ev, err := events.Decode(env)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopes = nil
}
