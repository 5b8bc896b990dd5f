// saascompare builds side-by-side comparisons of SaaS tools and cloud
// services.
//
// Usage:
//
//	saascompare compare --catalog tools.yaml --ids slack,teams --view pricing
//	saascompare serve --port 8080
//	saascompare catalog ingest --file tools.yaml
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"saas-compare/internal/config"
	"saas-compare/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes for CI use.
const (
	ExitPolicyDeny = 2
	ExitInvalid    = 10
)

func main() {
	app := &cli.App{
		Name:    "saascompare",
		Usage:   "Compare features, limitations, integrations and pricing across SaaS tools and cloud services",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SAASCOMPARE_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "dev",
				Usage:   "Human readable console logs",
				EnvVars: []string{"SAASCOMPARE_DEV"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Aliases: []string{"c"},
				Usage:   "Catalog file (JSON or YAML)",
				EnvVars: []string{"CATALOG_FILE"},
			},
			&cli.StringFlag{
				Name:    "catalog-url",
				Usage:   "Base URL of a remote catalog API",
				EnvVars: []string{"CATALOG_API_URL"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Usage:   "ClickHouse host; enables the snapshot store",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "saascompare",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
		},

		Commands: []*cli.Command{
			compareCommand(),
			serveCommand(),
			catalogCommand(),
			tiersCommand(),
			policyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment (and .env) then applies global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("dev") {
		cfg.Development = c.Bool("dev")
	}
	if c.IsSet("catalog") {
		cfg.CatalogFile = c.String("catalog")
	}
	if c.IsSet("catalog-url") {
		cfg.CatalogAPIURL = c.String("catalog-url")
	}
	if c.IsSet("clickhouse-host") {
		cfg.ClickHouse.Host = c.String("clickhouse-host")
	}
	if c.IsSet("clickhouse-port") {
		cfg.ClickHouse.Port = c.Int("clickhouse-port")
	}
	if c.IsSet("clickhouse-database") {
		cfg.ClickHouse.Database = c.String("clickhouse-database")
	}
	if c.IsSet("clickhouse-user") {
		cfg.ClickHouse.User = c.String("clickhouse-user")
	}
	if c.IsSet("clickhouse-password") {
		cfg.ClickHouse.Password = c.String("clickhouse-password")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return platform.NewLogger(cfg.LogLevel, cfg.Development)
}

// splitList splits comma separated flag values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
