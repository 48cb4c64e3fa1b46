// Package config assembles service settings from .env, an optional YAML file
// and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/livedraft/go/internal/dbconfig"
	"github.com/mcdev12/livedraft/go/internal/draft/gateway"
	"github.com/mcdev12/livedraft/go/internal/draft/livesync"
	"github.com/mcdev12/livedraft/go/internal/draft/notify"
	"github.com/mcdev12/livedraft/go/internal/draft/outbox"
	"github.com/mcdev12/livedraft/go/internal/player"
	"github.com/mcdev12/livedraft/go/internal/recommend"
)

// EventDelivery selects how session events leave the process.
type EventDelivery string

const (
	// DeliveryDirect publishes to JetStream from the emitting goroutine.
	DeliveryDirect EventDelivery = "direct"
	// DeliveryOutbox writes to the Postgres outbox and relays from there.
	DeliveryOutbox EventDelivery = "outbox"
	// DeliveryLocal keeps events in process (log + websocket only).
	DeliveryLocal EventDelivery = "local"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	Database dbconfig.Config `yaml:"-"`
	Feed     FeedConfig      `yaml:"feed"`
	Sync     livesync.Config `yaml:"sync"`
	Events   EventsConfig    `yaml:"events"`
	Players  PlayersConfig   `yaml:"players"`

	JetStream notify.JetStreamConfig          `yaml:"jetstream"`
	Relay     outbox.RelayConfig              `yaml:"relay"`
	Gateway   gateway.ConnectionConfig        `yaml:"gateway"`
	Consumer  gateway.JetStreamConsumerConfig `yaml:"consumer"`
	Recommend recommend.Tables                `yaml:"recommend"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

type FeedConfig struct {
	BaseURL string `yaml:"base_url" env:"SLEEPER_BASE_URL"`
	Token   string `yaml:"-" env:"SLEEPER_TOKEN"`
}

type EventsConfig struct {
	Delivery EventDelivery `yaml:"delivery" env:"EVENT_DELIVERY"`
	NATSURL  string        `yaml:"nats_url" env:"NATS_URL"`
}

type PlayersConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"PLAYER_CACHE_TTL"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log:       LogConfig{Level: "info"},
		Sync:      livesync.DefaultConfig(),
		Events:    EventsConfig{Delivery: DeliveryLocal},
		Players:   PlayersConfig{CacheTTL: player.DefaultCacheTTL},
		JetStream: notify.DefaultJetStreamConfig(),
		Relay:     outbox.DefaultRelayConfig(),
		Gateway:   gateway.DefaultConnectionConfig(),
		Consumer:  gateway.DefaultJetStreamConsumerConfig(),
		Recommend: recommend.DefaultTables(),
	}
}

// Load reads .env (if present), then the YAML file at path (if present), then
// environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := cfg.apply(data); err != nil {
				return Config{}, err
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}
	cfg.Relay.DatabaseURL = cfg.Database.DSN()
	if cfg.Events.NATSURL != "" {
		cfg.JetStream.URL = cfg.Events.NATSURL
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// apply layers YAML onto cfg. Maps are merged key by key, so a file only has
// to name the recommendation values it changes.
func (c *Config) apply(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Events.Delivery {
	case DeliveryDirect, DeliveryOutbox, DeliveryLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown event delivery %q", c.Events.Delivery))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if err := c.Recommend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recommend: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
