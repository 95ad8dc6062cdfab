package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tradeup/x-engager/internal/adapters/botapi"
	"github.com/tradeup/x-engager/internal/adapters/duckdb"
	"github.com/tradeup/x-engager/internal/adapters/llm"
	"github.com/tradeup/x-engager/internal/adapters/sheets"
	"github.com/tradeup/x-engager/internal/adapters/twitter"
	"github.com/tradeup/x-engager/internal/config"
	"github.com/tradeup/x-engager/internal/core/ports"
	"github.com/tradeup/x-engager/internal/core/services"
	"github.com/tradeup/x-engager/internal/registry"
	"github.com/tradeup/x-engager/internal/workflow"
	"github.com/tradeup/x-engager/pkg/dashboard"
)

func main() {
	cmd := buildCLI()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCLI() *cli.Command {
	return &cli.Command{
		Name:  "engager",
		Usage: "TradeUp X engagement bot and operations dashboard",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "start the bot manager and dashboard API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "path to the YAML config file",
						Value:   "config.yaml",
					},
				},
				Action: start,
			},
		},
	}
}

func start(ctx context.Context, cmd *cli.Command) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	validate := validator.New()
	cfg, err := config.Load(ctx, cmd.String("config"), validate)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("starting x-engager",
		"addr", cfg.Server.Addr,
		"db", cfg.Storage.Path,
		"poll_interval", cfg.Refresh.Interval,
	)

	repo, err := duckdb.NewRepository(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repo.Close()

	gen := buildGenerator(logger, cfg)
	poster := twitter.NewClient(logger, cfg.Twitter.BearerToken, cfg.Twitter.Username)
	sheetClient := sheets.NewClient(logger, cfg.Sheets.APIKey, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range)

	// The tweet pool refreshes on the slower Twitter cadence so reply
	// sweeps and dashboard reads do not spend sheet quota per request.
	tweetSource := sheets.NewCachedSource(logger, sheetClient, cfg.Refresh.TwitterInterval)

	manager := services.NewManager(logger, repo, gen, poster, tweetSource)

	// The registry can follow a remote engager instead of the local
	// manager; everything else still runs in-process.
	var (
		statusSrc registry.StatusSource = manager
		commander registry.Commander   = manager
	)
	if cfg.Backend.URL != "" {
		logger.Info("registry following remote backend", "url", cfg.Backend.URL)
		remote := botapi.NewClient(cfg.Backend.URL)
		statusSrc, commander = remote, remote
	}

	view := registry.NewView(logger, statusSrc, commander, registry.Config{
		Interval:     cfg.Refresh.Interval,
		RefreshDelay: cfg.Refresh.CommandDelay,
	})

	wf := workflow.NewService(logger, gen, poster, tweetSource, manager,
		workflow.WithCommitHook(cfg.Refresh.CommandDelay, func() {
			view.Refresh(context.Background())
		}),
	)

	server := dashboard.NewServer(cfg.Server.Addr, logger, manager, wf, view, repo, gen, poster, tweetSource)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gCtx)
	})

	g.Go(func() error {
		err := manager.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := view.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := tweetSource.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	logger.Info("x-engager started")
	return g.Wait()
}

// buildGenerator prefers the OpenAI generator and falls back to templates
// when no API key is configured, so the service stays usable offline.
func buildGenerator(logger *slog.Logger, cfg *config.Config) ports.Generator {
	if cfg.LLM.APIKey == "" {
		logger.Warn("no LLM API key configured, using template content generation")
		return llm.NewTemplateGenerator()
	}

	gen, err := llm.NewOpenAIGenerator(logger, llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxRetries:  cfg.LLM.MaxRetries,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		logger.Warn("LLM init failed, using template content generation", "error", err)
		return llm.NewTemplateGenerator()
	}
	return gen
}
