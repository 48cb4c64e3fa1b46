package dbconfig

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds Postgres connection settings.
type Config struct {
	Host         string `env:"DB_HOST" envDefault:"localhost" yaml:"host"`
	Port         int    `env:"DB_PORT" envDefault:"5432" yaml:"port"`
	User         string `env:"DB_USER" envDefault:"postgres" yaml:"user"`
	Password     string `env:"DB_PASSWORD" envDefault:"postgres" yaml:"-"`
	Database     string `env:"DB_NAME" envDefault:"livedraft" yaml:"database"`
	SSLMode      string `env:"DB_SSLMODE" envDefault:"disable" yaml:"sslmode"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10" yaml:"max_open_conns"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5" yaml:"max_idle_conns"`
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse database env: %w", err)
	}
	return cfg, nil
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
