package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/pagefeed/internal"
	pkgconfig "github.com/starford/pagefeed/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func publish(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dryRun := cmd.Bool("dry-run")
	opts := []internal.Option{internal.WithConfig(cfg)}
	if dryRun {
		// stdout carries the feed
		opts = append(opts, internal.WithLogOutput(os.Stderr))
	}
	if err := internal.Publish(ctx, dryRun, opts...); err != nil {
		return fmt.Errorf("publish error: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func history(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.History(ctx, int(cmd.Int("limit")), internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func main() {
	cmd := &cli.Command{
		Name:   "pagefeed",
		Usage:  "Publish pages from a Notion database or Markdown folder as an RSS feed",
		Action: publish,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "publish",
				Usage:  "Run the pipeline once: write the feed and mark included pages published",
				Action: publish,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the feed to stdout without writing or marking anything",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the feed and the publish API over HTTP",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Expose publish tools to MCP clients over stdio",
				Action: mcp,
			},
			{
				Name:   "history",
				Usage:  "List recent publish runs",
				Action: history,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
