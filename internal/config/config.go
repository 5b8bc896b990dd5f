package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the API server and the CLI.
type Config struct {
	Port        int      `env:"SAASCOMPARE_PORT" envDefault:"8080"`
	CORSOrigins []string `env:"SAASCOMPARE_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel    string   `env:"SAASCOMPARE_LOG_LEVEL" envDefault:"info"`
	Development bool     `env:"SAASCOMPARE_DEV" envDefault:"false"`

	ClickHouse ClickHouseConfig `envPrefix:"CLICKHOUSE_"`

	PostgresURL string `env:"POSTGRES_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`

	CatalogAPIURL string        `env:"CATALOG_API_URL"`
	CatalogFile   string        `env:"CATALOG_FILE"`
	HTTPRetries   int           `env:"HTTP_RETRIES" envDefault:"3"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	MaxSelectableAnonymous     int           `env:"MAX_SELECTABLE_ANONYMOUS" envDefault:"3"`
	MaxSelectableAuthenticated int           `env:"MAX_SELECTABLE_AUTHENTICATED" envDefault:"10"`
	SelectionTTL               time.Duration `env:"SELECTION_TTL" envDefault:"30m"`

	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"USD"`
}

type ClickHouseConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"9000"`
	Database string `env:"DATABASE" envDefault:"saascompare"`
	User     string `env:"USER" envDefault:"default"`
	Password string `env:"PASSWORD"`
}

// Enabled reports whether a ClickHouse host is configured.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// Load reads an optional .env file from the working directory and then parses
// the environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxSelectableAnonymous < 1 || c.MaxSelectableAuthenticated < 1 {
		return fmt.Errorf("max selectable must be at least 1")
	}
	if c.HTTPRetries < 0 {
		return fmt.Errorf("http retries must not be negative")
	}
	c.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.DefaultCurrency))
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("invalid default currency %q", c.DefaultCurrency)
	}
	return nil
}

// Addr is the listen address for the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
