package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"rsoreplay/internal/breaker"
	"rsoreplay/internal/config"
	"rsoreplay/internal/logging"
	"rsoreplay/internal/store"
	"rsoreplay/internal/store/postgres"
	"rsoreplay/internal/store/sqlite"
)

func loadConfig() (*config.ProjectConfig, *slog.Logger, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	// stdout belongs to the MCP transport and command output.
	logger, err := logging.New(cfg.Log, cfg.Service, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openBackend(ctx context.Context, dsn string) (store.Store, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.New(ctx, dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn %q", dsn)
	}
}

// openDB opens the configured backend behind the storage breaker.
func openDB(ctx context.Context, cfg *config.ProjectConfig, logger *slog.Logger) (*store.Guarded, *breaker.Breaker, error) {
	backend, err := openBackend(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	b := breaker.New("storage", breaker.Settings{
		Threshold: cfg.Breakers.Storage.FailureThreshold,
		Cooldown:  cfg.Breakers.Storage.Cooldown,
	}, logger)
	return store.NewGuarded(backend, b), b, nil
}
