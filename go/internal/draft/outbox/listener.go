package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
)

type RelayConfig struct {
	DatabaseURL      string        `yaml:"-"`                 // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        `yaml:"notify_channel"`    // Channel name to LISTEN on
	FallbackInterval time.Duration `yaml:"fallback_interval"` // How often to poll for missed events
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	BatchSize        int           `yaml:"batch_size"` // Max records to fetch per poll
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		NotifyChannel:    "draft_session_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Store is what the relay needs from the outbox table.
type Store interface {
	FetchUnsentByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FetchUnsent(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// Publisher delivers an envelope downstream, JetStream in production.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// NotificationSource is the subset of *pq.Listener the relay uses.
type NotificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Relay moves outbox records to the publisher. It reacts to NOTIFY from the
// insert trigger and polls for anything missed while the connection was down.
type Relay struct {
	store     Store
	source    NotificationSource
	publisher Publisher
	metrics   MetricsCollector
	clock     clockwork.Clock
	cfg       RelayConfig

	mu            sync.Mutex
	running       bool
	published     uint64
	lastPublishAt time.Time
}

// NewPQListener opens a pq.Listener on cfg.NotifyChannel.
func NewPQListener(cfg RelayConfig) (*pq.Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("outbox listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for outbox notifications")
	return l, nil
}

func NewRelay(store Store, source NotificationSource, publisher Publisher, metrics MetricsCollector, clock clockwork.Clock, cfg RelayConfig) *Relay {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		store:     store,
		source:    source,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		cfg:       cfg,
	}
}

// Start runs the relay until ctx is cancelled. It drains anything already
// pending before waiting for notifications.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("outbox relay already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	if err := r.ProcessUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent outbox records")
	}

	pingTicker := r.clock.NewTicker(r.cfg.PingInterval)
	fallbackTicker := r.clock.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	notes := r.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return r.source.Close()
		case note := <-notes:
			if note == nil {
				// connection was re-established; anything sent meanwhile is only reachable by polling
				if err := r.ProcessUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent outbox records")
				}
				continue
			}
			if err := r.HandleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle outbox notification")
			}
		case <-fallbackTicker.Chan():
			if err := r.ProcessUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent outbox records")
			}
		case <-pingTicker.Chan():
			if err := r.source.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping outbox listener")
			}
		}
	}
}

// HandleNotification publishes the record named by a NOTIFY payload.
func (r *Relay) HandleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid record id in notification: %w", err)
	}

	rec, err := r.store.FetchUnsentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// already relayed by the fallback poll
			return nil
		}
		return err
	}

	return r.publishWithRetry(ctx, *rec)
}

// ProcessUnsent relays one batch of unsent records, oldest first.
func (r *Relay) ProcessUnsent(ctx context.Context) error {
	start := r.clock.Now()
	unsent, err := r.store.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	r.metrics.RecordOutboxLag(len(unsent))

	for _, rec := range unsent {
		if err := r.publishWithRetry(ctx, rec); err != nil {
			log.Error().Err(err).Str("event_id", rec.ID.String()).Msg("failed to relay outbox record")
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	r.metrics.RecordBatchProcessed(len(unsent), r.clock.Since(start))
	return nil
}

// publishWithRetry publishes rec with linear backoff, then marks it sent.
func (r *Relay) publishWithRetry(ctx context.Context, rec Record) error {
	var lastErr error
	env := rec.Envelope()
	eventType := string(rec.EventType)

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(delay):
			}
		}

		start := r.clock.Now()
		err := r.publisher.Publish(ctx, env)
		r.metrics.RecordPublishAttempt(eventType, attempt+1, err == nil)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", rec.ID.String()).
				Msg("failed to publish outbox record, retrying")
			continue
		}
		r.metrics.RecordEventProcessed(eventType, true, r.clock.Since(start))

		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			return err
		}

		r.mu.Lock()
		r.published++
		r.lastPublishAt = r.clock.Now()
		r.mu.Unlock()

		log.Debug().
			Str("event_id", rec.ID.String()).
			Str("session_id", rec.SessionID.String()).
			Str("event_type", eventType).
			Int("attempt", attempt+1).
			Msg("relayed outbox record")
		return nil
	}

	r.metrics.RecordEventProcessed(eventType, false, 0)
	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

// Stats returns the number of records relayed and when the last one went out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.lastPublishAt
}

// Running reports whether Start is active.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
