package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rsoreplay/internal/breaker"
	"rsoreplay/internal/ingest"
	"rsoreplay/internal/mcp"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	var noIngest bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Ingest from the message bus and serve replay tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(noIngest)
		},
	}
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "Serve tools without subscribing to the message bus")
	return cmd
}

func runServe(noIngest bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, storageBreaker, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	svc, err := newReplayService(cfg, db, logger)
	if err != nil {
		return err
	}

	var status mcp.StatusFunc
	if !noIngest {
		busBreaker := breaker.New("bus", breaker.Settings{
			Threshold: cfg.Breakers.Bus.FailureThreshold,
			Cooldown:  cfg.Breakers.Bus.Cooldown,
		}, logger)
		dialer := &ingest.MQTTDialer{
			Broker:         cfg.Bus.Broker,
			ClientID:       cfg.Bus.ClientID,
			Username:       cfg.Bus.Username,
			Password:       cfg.Bus.Password,
			ConnectTimeout: cfg.Bus.ConnectTimeout,
		}
		connector := ingest.NewConnector(dialer, busBreaker, ingest.NewSequencer(db), ingest.Options{
			Topic:           cfg.Bus.Topic,
			QoS:             cfg.Bus.QoS,
			MonitorInterval: cfg.Bus.MonitorInterval,
			ConnectTimeout:  cfg.Bus.ConnectTimeout,
			MaxBackoff:      cfg.Bus.MaxBackoff,
			StoreTimeout:    cfg.Bus.StoreTimeout,
		}, logger)
		if err := connector.Start(ctx); err != nil {
			return err
		}
		defer connector.Close()

		status = func() mcp.StatusOutput {
			stats := connector.Stats()
			breakers := map[string]string{
				storageBreaker.Name(): string(storageBreaker.State()),
				busBreaker.Name():     string(busBreaker.State()),
			}
			return mcp.StatusOutput{
				Ingest:     connector.State().String(),
				Breakers:   breakers,
				Received:   stats.Received,
				Appended:   stats.Appended,
				Ignored:    stats.Ignored,
				Duplicates: stats.Duplicates,
				Dropped:    stats.Dropped,
			}
		}
	}

	logger.Info("serving replay tools over stdio", "ingest", !noIngest, "database", redactDSN(cfg.Database.DSN))
	server := mcp.NewServer(svc, status, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
