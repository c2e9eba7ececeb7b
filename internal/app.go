package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/pagefeed/internal/eligibility"
	"github.com/starford/pagefeed/internal/feed"
	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/publish"
	"github.com/starford/pagefeed/internal/render"
	"github.com/starford/pagefeed/internal/source"
	"github.com/starford/pagefeed/internal/source/notion"
	"github.com/starford/pagefeed/internal/source/vault"
	"github.com/starford/pagefeed/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, errors.New("config is required")
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.logOut == nil {
		app.logOut = os.Stdout
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	return app, nil
}

// components is the wired pipeline shared by every command.
type components struct {
	source    source.Provider
	vaultRoot string
	output    *storage.FS
	feedPath  string
	format    feed.Format
	ledger    *ledger.DB
	publisher *publish.Publisher
}

func (c *components) Close() {
	if c.ledger != nil {
		_ = c.ledger.Close()
	}
}

// build wires source, output, ledger and publisher from the config.
// Extra publisher options (the SSE notifier in serve mode) are appended.
func (a *application) build(extra ...publish.Option) (*components, error) {
	cfg := a.config
	logger := a.logger

	a.logger.Info("Configuration loaded",
		slog.String("source", cfg.Source.Kind),
		slog.String("eligibility", cfg.Eligibility.Mode),
		slog.String("commit_mode", cfg.Publish.CommitMode),
		slog.String("output", cfg.Output.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.Eligibility.Location()
	if err != nil {
		return nil, fmt.Errorf("eligibility timezone: %w", err)
	}

	c := &components{format: cfg.Output.FeedFormat()}

	switch cfg.Source.Kind {
	case SourceVault:
		if err := os.MkdirAll(cfg.Source.Vault.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Source.Vault.Path)
		if err != nil {
			return nil, fmt.Errorf("init vault storage: %w", err)
		}
		c.source = vault.New(store, vault.WithLogger(logger))
		c.vaultRoot = store.Root()
	default:
		client, err := notion.New(cfg.Source.Notion.ClientConfig(), notion.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("init notion client: %w", err)
		}
		c.source = client
	}

	// A dry run streams the feed to a.out and touches neither the output
	// directory nor the ledger.
	var writer feed.Writer
	if a.dryRun {
		writer = feed.NewStreamWriter(a.out, c.format, time.Now)
	} else {
		outAbs, err := filepath.Abs(cfg.Output.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve output path: %w", err)
		}
		c.output, err = storage.NewFS(filepath.Dir(outAbs))
		if err != nil {
			return nil, fmt.Errorf("init output storage: %w", err)
		}
		c.feedPath = filepath.Base(outAbs)
		writer = feed.NewFileWriter(c.output, c.feedPath, c.format, time.Now)
	}

	filter, err := eligibility.New(eligibility.Mode(cfg.Eligibility.Mode), time.Now, loc)
	if err != nil {
		return nil, err
	}

	pubOpts := []publish.Option{
		publish.WithLogger(logger),
		publish.WithCommitMode(publish.CommitMode(cfg.Publish.CommitMode)),
	}
	if cfg.Ledger.Enabled() && !a.dryRun {
		db, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.DSN)
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		c.ledger = db
		pubOpts = append(pubOpts, publish.WithRecorder(db))
	}
	pubOpts = append(pubOpts, extra...)

	c.publisher, err = publish.New(publish.Deps{
		Source:    c.source,
		Filter:    filter,
		Writer:    writer,
		Registry:  render.NewRegistry(render.WithLogger(logger)),
		Committer: publish.NewSourceCommitter(c.source, time.Now, loc),
		Assembler: feed.NewAssembler(cfg.Channel.FallbackLinkBase, time.Now),
		Channel:   cfg.Channel.Meta(),
	}, pubOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
