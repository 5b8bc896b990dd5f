package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"saas-compare/decision/catalog"
	"saas-compare/decision/comparison"
	"saas-compare/decision/policy"
	"saas-compare/decision/report"
	"saas-compare/decision/selection"
	"saas-compare/internal/render"
	cmperrors "saas-compare/pkg/errors"
)

// =============================================================================
// COMPARE COMMAND
// =============================================================================

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Build a comparison matrix for catalog entities",
		ArgsUsage: "[entity ids...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "ids",
				Aliases: []string{"i"},
				Usage:   "Entity ids to compare, in column order (comma separated or repeated)",
			},
			&cli.StringFlag{
				Name:  "view",
				Value: "features",
				Usage: "View (features, limitations, integrations, pricing)",
			},
			&cli.StringFlag{
				Name:  "tier-set",
				Usage: "Pricing tier set (" + strings.Join(catalog.TierSetNames(), ", ") + ")",
			},
			&cli.StringSliceFlag{
				Name:  "tiers",
				Usage: "Explicit pricing tiers, overriding --tier-set",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
			&cli.BoolFlag{
				Name:  "diff-only",
				Usage: "Only show rows where entities differ",
			},
			&cli.Float64Flag{
				Name:  "max-price",
				Usage: "Warn about tiers above this monthly price",
			},
			&cli.BoolFlag{
				Name:  "authenticated",
				Usage: "Apply the authenticated selection cap",
			},
			&cli.BoolFlag{
				Name:  "group",
				Usage: "Group rows by whether all, some or none of the entities offer them",
			},
		},
		Action: runCompare,
	}
}

func runCompare(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	view, err := comparison.ParseView(c.String("view"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalid)
	}
	format, err := render.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInvalid)
	}

	ids := splitList(append(c.StringSlice("ids"), c.Args().Slice()...))
	if len(ids) == 0 {
		return cli.Exit("no entity ids given", ExitInvalid)
	}

	b := &backends{}
	defer b.Close()
	src, err := buildSource(c.Context, cfg, logger, b)
	if err != nil {
		return err
	}

	svc := report.NewService(src, selection.Limits{
		Anonymous:     cfg.MaxSelectableAnonymous,
		Authenticated: cfg.MaxSelectableAuthenticated,
	}, nil, logger)

	req := report.Request{
		IDs:           ids,
		View:          view,
		TierSet:       c.String("tier-set"),
		Tiers:         splitList(c.StringSlice("tiers")),
		Authenticated: c.Bool("authenticated"),
		DiffOnly:      c.Bool("diff-only"),
	}
	if c.IsSet("max-price") {
		limit := c.Float64("max-price")
		req.MaxPrice = &limit
	}

	res, err := svc.Run(c.Context, req)
	var denied *report.DeniedError
	switch {
	case errors.As(err, &denied):
		printDenied(denied.Result)
		return cli.Exit("comparison denied by policy", ExitPolicyDeny)
	case cmperrors.CodeOf(err) == cmperrors.ErrCodeInvalidEntity,
		cmperrors.CodeOf(err) == cmperrors.ErrCodeUnknownTierSet:
		return cli.Exit(err.Error(), ExitInvalid)
	case err != nil:
		return err
	}

	if res.FromFallback {
		fmt.Fprintf(os.Stderr, "warning: served by fallback source %s\n", res.Source)
	}
	out := &render.Report{
		Matrix:   res.Matrix,
		Coverage: res.Coverage,
		Policy:   res.Policy,
		Missing:  res.Missing,
	}
	if c.Bool("group") {
		groups := res.Matrix.Partition()
		out.Groups = &groups
	}
	return render.Write(os.Stdout, format, out)
}

func printDenied(result *policy.EvaluationResult) {
	for _, v := range result.Violations {
		fmt.Fprintf(os.Stderr, "✗ %s: %s\n", v.PolicyName, v.Message)
	}
}

// =============================================================================
// TIERS COMMAND
// =============================================================================

func tiersCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiers",
		Usage: "List the built-in pricing tier sets",
		Action: func(c *cli.Context) error {
			for _, name := range catalog.TierSetNames() {
				set, err := catalog.LookupTierSet(name)
				if err != nil {
					return err
				}
				fmt.Printf("%-6s %s\n", set.Name, strings.Join(set.Tiers, ", "))
			}
			return nil
		},
	}
}

// =============================================================================
// POLICY COMMAND
// =============================================================================

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "Inspect comparison policies",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List built-in policies",
				Action: func(c *cli.Context) error {
					fmt.Println("Built-in Policies:")
					for _, p := range policy.NewEngine().Policies() {
						fmt.Printf("  - %s (%s, %s): %s\n", p.ID, p.Type, p.Severity, p.Description)
					}
					return nil
				},
			},
		},
	}
}
