package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"saas-compare/db/ingestion"
	"saas-compare/decision/catalog"
	"saas-compare/internal/awspricing"
	"saas-compare/internal/htmlimport"
)

// =============================================================================
// CATALOG COMMAND
// =============================================================================

func catalogCommand() *cli.Command {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Catalog file (JSON or YAML)",
		Required: true,
	}
	outFlag := &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Write the catalog here instead of stdout; .yaml and .yml write YAML, anything else JSON",
	}

	return &cli.Command{
		Name:  "catalog",
		Usage: "Validate, import and ingest catalogs",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Check a catalog file",
				Flags:  []cli.Flag{fileFlag},
				Action: runCatalogValidate,
			},
			{
				Name:   "ingest",
				Usage:  "Store a catalog file as the active ClickHouse snapshot",
				Flags:  []cli.Flag{fileFlag},
				Action: runCatalogIngest,
			},
			{
				Name:   "stats",
				Usage:  "Show the active ClickHouse snapshot",
				Action: runCatalogStats,
			},
			{
				Name:  "import-aws",
				Usage: "Build a cloud entity from the AWS Price List API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "service", Usage: "AWS service code, e.g. AmazonEC2", Required: true},
					&cli.StringFlag{Name: "region", Value: "us-east-1", Usage: "Region code"},
					&cli.StringFlag{Name: "tier-attribute", Value: awspricing.DefaultTierAttribute, Usage: "Product attribute listed as features"},
					&cli.IntFlag{Name: "max-pages", Value: awspricing.DefaultMaxPages, Usage: "Maximum GetProducts pages"},
					outFlag,
				},
				Action: runImportAWS,
			},
			{
				Name:  "import-html",
				Usage: "Build a SaaS entity from a pricing page table",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Pricing page URL"},
					&cli.StringFlag{Name: "html", Usage: "Local HTML file instead of --url"},
					&cli.StringFlag{Name: "id", Usage: "Entity id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Entity name (defaults to the page title)"},
					&cli.StringFlag{Name: "category", Usage: "Entity category"},
					&cli.StringFlag{Name: "selector", Usage: "CSS selector of the pricing table"},
					outFlag,
				},
				Action: runImportHTML,
			},
		},
	}
}

func parseCatalog(c *cli.Context, path string) (*catalog.Catalog, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	parser := &catalog.Parser{DefaultCurrency: cfg.DefaultCurrency}
	cat, err := parser.ParseFile(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("%s: %v", path, err), ExitInvalid)
	}
	return cat, nil
}

func runCatalogValidate(c *cli.Context) error {
	cat, err := parseCatalog(c, c.String("file"))
	if err != nil {
		return err
	}

	var tools, clouds int
	for i := range cat.Entities {
		if cat.Entities[i].Kind == catalog.KindCloud {
			clouds++
		} else {
			tools++
		}
	}
	hash, err := ingestion.HashCatalog(cat.Entities)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d entities (%d tools, %d cloud services)\n", len(cat.Entities), tools, clouds)
	fmt.Printf("  hash: %s\n", hash)
	return nil
}

func runCatalogIngest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.ClickHouse.Enabled() {
		return cli.Exit("--clickhouse-host is required for ingest", ExitInvalid)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cat, err := parseCatalog(c, c.String("file"))
	if err != nil {
		return err
	}

	store, err := openClickHouse(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(c.Context); err != nil {
		return fmt.Errorf("failed to migrate ClickHouse: %w", err)
	}

	adapter := ingestion.NewClickHouseAdapter(store, logger)
	result, err := adapter.Ingest(c.Context, cat.Entities, c.String("file"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if err := adapter.VerifyIngestion(c.Context, result.SnapshotID, len(cat.Entities)); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runCatalogStats(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.ClickHouse.Enabled() {
		return cli.Exit("--clickhouse-host is required for stats", ExitInvalid)
	}
	store, err := openClickHouse(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := ingestion.NewClickHouseAdapter(store, nil).GetIngestionStats(c.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func runImportAWS(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	importer, err := awspricing.NewFromEnvironment(c.Context, logger)
	if err != nil {
		return err
	}
	entity, err := importer.Import(c.Context, awspricing.Options{
		ServiceCode:   c.String("service"),
		Region:        c.String("region"),
		TierAttribute: c.String("tier-attribute"),
		MaxPages:      c.Int("max-pages"),
	})
	if err != nil {
		return err
	}
	logger.Info("Imported AWS service",
		zap.String("id", entity.ID),
		zap.Strings("tiers", entity.TierKeys()))
	return writeEntities(c.String("out"), []catalog.Entity{*entity})
}

func runImportHTML(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := htmlimport.Options{
		ID:       c.String("id"),
		Name:     c.String("name"),
		Category: c.String("category"),
		Currency: cfg.DefaultCurrency,
		Selector: c.String("selector"),
	}

	var entity *catalog.Entity
	switch {
	case c.String("html") != "":
		f, err := os.Open(c.String("html"))
		if err != nil {
			return err
		}
		defer f.Close()
		entity, err = htmlimport.Parse(f, opts)
		if err != nil {
			return err
		}
	case c.String("url") != "":
		entity, err = htmlimport.Fetch(c.Context, newHTTPClient(cfg, logger), c.String("url"), opts)
		if err != nil {
			return err
		}
	default:
		return cli.Exit("one of --url or --html is required", ExitInvalid)
	}

	return writeEntities(c.String("out"), []catalog.Entity{*entity})
}

// writeEntities writes a catalog document to path, or YAML to stdout when
// path is empty.
func writeEntities(path string, entities []catalog.Entity) error {
	doc := catalog.Catalog{Entities: entities}

	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if path != "" && catalog.FormatForPath(path) == catalog.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
