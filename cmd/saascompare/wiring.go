package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"saas-compare/db/clickhouse"
	"saas-compare/decision/catalog"
	"saas-compare/decision/source"
	"saas-compare/internal/config"
	"saas-compare/pkg/platform"
)

// backends holds the optional stores a command opened.
type backends struct {
	clickhouse *clickhouse.Store
	closers    []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openClickHouse(cfg *config.Config) (*clickhouse.Store, error) {
	store, err := clickhouse.NewStore(&clickhouse.Config{
		Host:     cfg.ClickHouse.Host,
		Port:     cfg.ClickHouse.Port,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return store, nil
}

func newHTTPClient(cfg *config.Config, logger *zap.Logger) *platform.HTTPClient {
	client := platform.NewHTTPClient(cfg.HTTPRetries, cfg.HTTPTimeout)
	client.Logger = logger
	return client
}

// buildSource chains the configured entity sources. The remote catalog API is
// tried first, then the ClickHouse snapshot, then the catalog file; each later
// source only serves when the ones before it fail.
func buildSource(ctx context.Context, cfg *config.Config, logger *zap.Logger, b *backends) (source.Source, error) {
	var chain []source.Source

	if cfg.CatalogAPIURL != "" {
		chain = append(chain, source.NewHTTPSource(cfg.CatalogAPIURL, newHTTPClient(cfg, logger)))
	}

	if cfg.ClickHouse.Enabled() {
		store, err := openClickHouse(cfg)
		if err != nil {
			return nil, err
		}
		b.clickhouse = store
		b.closers = append(b.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ClickHouse not reachable: %w", err)
		}
		chain = append(chain, source.NewStoreSource(store))
	}

	if cfg.CatalogFile != "" {
		file, err := source.LoadStaticSource(cfg.CatalogFile, &catalog.Parser{DefaultCurrency: cfg.DefaultCurrency})
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.CatalogFile, err)
		}
		logger.Info("Catalog loaded",
			zap.String("file", cfg.CatalogFile),
			zap.Int("entities", len(file.Entities())))
		chain = append(chain, file)
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("no entity source configured: set --catalog, --catalog-url or --clickhouse-host")
	}

	src := chain[0]
	for _, next := range chain[1:] {
		src = source.Fallback(src, next, logger)
	}
	return src, nil
}
