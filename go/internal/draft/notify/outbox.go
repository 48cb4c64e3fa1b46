package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
)

// OutboxWriter stores an envelope for later relay.
type OutboxWriter interface {
	Insert(ctx context.Context, env events.Envelope) error
}

// OutboxChannel writes events to the transactional outbox. Delivery to
// subscribers happens asynchronously through the outbox relay.
type OutboxChannel struct {
	writer OutboxWriter
	clock  clockwork.Clock
}

var _ Channel = (*OutboxChannel)(nil)

func NewOutboxChannel(writer OutboxWriter, clock clockwork.Clock) *OutboxChannel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OutboxChannel{writer: writer, clock: clock}
}

func (c *OutboxChannel) Emit(ctx context.Context, sessionID uuid.UUID, ev events.Event) error {
	env, err := events.NewEnvelope(sessionID, ev, c.clock.Now())
	if err != nil {
		return err
	}
	if err := c.writer.Insert(ctx, env); err != nil {
		return fmt.Errorf("failed to write %s to outbox: %w", env.Type, err)
	}
	return nil
}
