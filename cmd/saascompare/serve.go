package main

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"saas-compare/api"
	"saas-compare/db/postgres"
	"saas-compare/db/redisstore"
	"saas-compare/decision/selection"
	"saas-compare/internal/observability"
)

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the comparison API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"SAASCOMPARE_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"SAASCOMPARE_CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for session selections (in-memory when empty)",
				EnvVars: []string{"REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "postgres-url",
				Usage:   "Postgres URL for saved comparisons (disabled when empty)",
				EnvVars: []string{"POSTGRES_URL"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("cors-origins") {
		cfg.CORSOrigins = strings.Split(c.String("cors-origins"), ",")
	}
	if c.IsSet("redis-addr") {
		cfg.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("postgres-url") {
		cfg.PostgresURL = c.String("postgres-url")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	b := &backends{}
	defer b.Close()

	src, err := buildSource(c.Context, cfg, logger, b)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Source: src,
		Checks: make(map[string]api.Pinger),
		Limits: selection.Limits{
			Anonymous:     cfg.MaxSelectableAnonymous,
			Authenticated: cfg.MaxSelectableAuthenticated,
		},
		Metrics: observability.NewMetrics(),
		Logger:  logger,
	}
	if b.clickhouse != nil {
		deps.Checks["clickhouse"] = b.clickhouse
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		b.closers = append(b.closers, client.Close)
		store := redisstore.NewSelectionStore(client, cfg.SelectionTTL)
		if err := store.Ping(c.Context); err != nil {
			return fmt.Errorf("redis not reachable: %w", err)
		}
		deps.Selections = store
		deps.Checks["redis"] = store
		logger.Info("Selections stored in Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		deps.Selections = selection.NewMemoryStore()
		logger.Warn("REDIS_ADDR not set, selections are kept in memory")
	}

	if cfg.PostgresURL != "" {
		store, err := postgres.Open(cfg.PostgresURL)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, store.Close)
		if err := store.Migrate(c.Context); err != nil {
			return fmt.Errorf("failed to migrate saved comparisons: %w", err)
		}
		deps.Comparisons = store
		deps.Checks["postgres"] = store
	}

	serverCfg := api.DefaultConfig()
	serverCfg.Port = cfg.Port
	serverCfg.CORSOrigins = cfg.CORSOrigins

	return api.NewServer(deps, serverCfg).StartWithGracefulShutdown()
}
