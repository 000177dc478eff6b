package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ludo-technologies/astsim/api"
	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/service"
)

// eventBuffer is the per-subscriber event queue length
const eventBuffer = 64

// ServeCommand runs the HTTP API and the optional inbox watcher
type ServeCommand struct {
	addr     string
	inboxDir string
	inMemory bool
}

// NewServeCommand creates a new serve command
func NewServeCommand() *ServeCommand {
	return &ServeCommand{}
}

// CreateCobraCommand creates the Cobra command for the server
func (c *ServeCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the similarity HTTP API",
		Long: `Run the HTTP API that stores submissions, analyzes them in the
background and streams batch progress as server-sent events.

When an inbox directory is configured, batch messages dropped into it as
JSON files are analyzed too.

Examples:
  # Serve on the configured address
  astsim serve

  # Serve on another port with an inbox
  astsim serve --addr :9090 --inbox ./inbox`,
		Args: cobra.NoArgs,
		RunE: c.runServe,
	}

	cmd.Flags().StringVar(&c.addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&c.inboxDir, "inbox", "", "Watch this directory for batch messages")
	cmd.Flags().BoolVar(&c.inMemory, "in-memory", false, "Keep the store in memory and discard it on exit")

	return cmd
}

// runServe executes the serve command
func (c *ServeCommand) runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, ".")
	if err != nil {
		return err
	}
	c.applyCliOverrides(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	store, closeStore, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := service.NewEventHub(eventBuffer)
	publisher := service.MultiPublisher{hub, service.NewLogPublisher(logger)}
	svc, err := service.NewSimilarityService(store, store, publisher, nil, service.SimilarityOptionsFromConfig(cfg), logger)
	if err != nil {
		return err
	}

	pool := service.NewWorkerPool(cfg.Batch.TaskWorkers, cfg.Batch.QueueCapacity, logger)
	defer pool.Close()
	runner := service.NewTaskRunner(pool, svc, store, logger)

	handlers := api.NewHandlers(api.Dependencies{
		Similarity:  svc,
		Batch:       service.NewBatchService(runner, svc, store),
		Runner:      runner,
		Submissions: store,
		Results:     store,
		Hub:         hub,
	})
	server := api.NewServer(cfg.Server, api.NewRouter(handlers, cfg.Server, logger), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})

	if cfg.Inbox.Enabled {
		watcher := service.NewInboxWatcher(cfg.Inbox.Dir, runner.RunBatch, logger)
		if err := watcher.Start(gctx); err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("failed to start inbox: %w", err)
		}
		defer watcher.Close()
		logger.Info("Inbox watching", slog.String("dir", cfg.Inbox.Dir))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applyCliOverrides applies flags that were set explicitly on top of cfg
func (c *ServeCommand) applyCliOverrides(cfg *config.Config, cmd *cobra.Command) {
	ft := config.NewFlagTrackerFromFlagSet(cmd.Flags())
	cfg.Server.Addr = config.Override(ft, cfg.Server.Addr, c.addr, "addr")
	cfg.Storage.InMemory = config.Override(ft, cfg.Storage.InMemory, c.inMemory, "in-memory")
	if ft.WasSet("inbox") {
		cfg.Inbox.Enabled = true
		cfg.Inbox.Dir = c.inboxDir
	}
}

// NewServeCmd creates and returns the serve cobra command
func NewServeCmd() *cobra.Command {
	return NewServeCommand().CreateCobraCommand()
}
