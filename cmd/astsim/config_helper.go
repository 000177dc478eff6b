package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/internal/storage"
	"github.com/ludo-technologies/astsim/service"
)

// setupLogging installs the default structured logger on stderr
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves the --config file or the nearest .astsim.toml above workDir
func loadConfig(cmd *cobra.Command, workDir string) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Resolve(configFile, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the store described by cfg; the returned function closes it
func openStore(cfg config.StorageConfig, logger *slog.Logger) (*storage.Store, func(), error) {
	dbCfg := storage.DefaultConfig(cfg.Path)
	dbCfg.InMemory = cfg.InMemory
	dbCfg.SyncWrites = cfg.SyncWrites
	dbCfg.GCInterval = time.Duration(cfg.GCIntervalSeconds) * time.Second
	dbCfg.Logger = logger

	db, err := storage.Open(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store, err := storage.NewStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to release store", slog.String("error", err.Error()))
		}
		if err := db.Close(); err != nil {
			logger.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}, nil
}

// getTargetPathFromArgs extracts the first argument as target path, or returns "."
func getTargetPathFromArgs(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// explainError prints the category of err and how to recover, then returns err
func explainError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	categorizer := service.NewErrorCategorizer()
	categorized := categorizer.Categorize(err)
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "%s: %s\n", categorized.Category, categorized.Message)
	for _, suggestion := range categorizer.GetRecoverySuggestions(categorized.Category) {
		fmt.Fprintf(w, "  • %s\n", suggestion)
	}
	return err
}
