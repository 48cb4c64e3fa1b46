package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/clients/sleeper_client"
	"github.com/mcdev12/livedraft/go/internal/config"
	"github.com/mcdev12/livedraft/go/internal/draft/gateway"
	"github.com/mcdev12/livedraft/go/internal/draft/httpapi"
	"github.com/mcdev12/livedraft/go/internal/draft/livesync"
	"github.com/mcdev12/livedraft/go/internal/draft/notify"
	"github.com/mcdev12/livedraft/go/internal/draft/outbox"
	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/leagues"
	"github.com/mcdev12/livedraft/go/internal/player"
	"github.com/mcdev12/livedraft/go/internal/recommend"
)

type Services struct {
	API       *httpapi.Handler
	WebSocket *gateway.WebSocketHandler
	Engine    *livesync.Engine
	Health    *outbox.HealthChecker // nil unless events go through the outbox
	Registry  *prometheus.Registry

	connections *gateway.ConnectionManager
	consumer    *gateway.EventConsumer
	relay       *outbox.Relay
	publisher   *notify.JetStreamPublisher
}

func setupServices(ctx context.Context, cfg config.Config, db *sql.DB, pool *pgxpool.Pool) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → HTTP layer

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := &Services{Registry: registry}

	// Leagues
	leagueApp := leagues.NewApp(leagues.NewRepository(db), nil)

	// Players
	playerApp := player.NewApp(player.NewRepository(pool), nil, cfg.Players.CacheTTL)

	// Notifications
	svc.connections = gateway.NewConnectionManager(cfg.Gateway, nil)
	notifier, err := svc.setupNotifier(ctx, cfg, db, registry)
	if err != nil {
		return nil, err
	}

	// Sessions
	locker := session.NewLocker()
	sessionStore := session.NewRepository(db)
	sessionApp := session.NewApp(sessionStore, leagueApp, locker, notifier, nil)

	// Live sync
	pickFeed := sleeper_client.NewSleeperClient(cfg.Feed.BaseURL, cfg.Feed.Token)
	svc.Engine = livesync.NewEngine(
		sessionStore, leagueApp, pickFeed, notifier, locker, nil,
		livesync.NewPrometheusMetrics(registry), cfg.Sync,
	)

	// Recommendations
	recommender := recommend.NewService(recommend.NewEngine(cfg.Recommend), sessionApp, leagueApp, playerApp, nil)

	svc.API = httpapi.NewHandler(sessionApp, leagueApp, playerApp, recommender, svc.Engine)
	svc.WebSocket = gateway.NewWebSocketHandler(svc.connections, sessionApp)
	return svc, nil
}

// setupNotifier builds the event fan-out for the configured delivery. With
// JetStream in play the websocket gateway is fed from the stream, so every
// replica sees every event; otherwise it is fed in process.
func (s *Services) setupNotifier(ctx context.Context, cfg config.Config, db *sql.DB, reg prometheus.Registerer) (session.Notifier, error) {
	fanout := notify.NewFanout(notify.LogChannel{})
	if cfg.Events.Delivery == config.DeliveryLocal {
		fanout.Add(s.connections)
		return fanout, nil
	}

	publisher, err := notify.NewJetStreamPublisher(ctx, cfg.JetStream)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream publisher: %w", err)
	}
	s.publisher = publisher

	s.consumer, err = gateway.NewEventConsumer(ctx, s.connections, publisher.Conn(), cfg.Consumer)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	switch cfg.Events.Delivery {
	case config.DeliveryDirect:
		fanout.Add(notify.NewJetStreamChannel(publisher, nil))
	case config.DeliveryOutbox:
		repo := outbox.NewRepository(db)
		listener, err := outbox.NewPQListener(cfg.Relay)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox listener: %w", err)
		}
		s.relay = outbox.NewRelay(repo, listener, publisher, outbox.NewPrometheusMetrics(reg), nil, cfg.Relay)
		s.Health = outbox.NewHealthChecker(s.relay, repo, publisher, nil, 2*cfg.Relay.FallbackInterval)
		fanout.Add(notify.NewOutboxChannel(repo, nil))
	}
	return fanout, nil
}

// Start launches the background workers. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) error {
	go s.connections.Start(ctx)

	if s.consumer != nil {
		go func() {
			if err := s.consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}
	if s.relay != nil {
		go func() {
			if err := s.relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("outbox relay failed")
			}
		}()
	}

	if err := s.Engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start live sync: %w", err)
	}
	go func() {
		<-s.Engine.Done()
		if err := s.Engine.Err(); err != nil {
			log.Error().Err(err).Msg("live sync halted")
		}
	}()
	return nil
}

// Stop waits for the sync engine to finish its cycle and closes NATS.
func (s *Services) Stop(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.Engine.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop live sync")
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close jetstream publisher")
		}
	}
}
