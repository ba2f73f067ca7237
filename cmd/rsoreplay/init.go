package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rsoreplay/internal/config"
)

func initCmd() *cobra.Command {
	var dsn, broker string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default project config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, dsn, broker)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN (sqlite:// or postgres://)")
	cmd.Flags().StringVar(&broker, "broker", "", "MQTT broker URL")
	return cmd
}

func runInit(cmd *cobra.Command, dsn, broker string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.Default()
	if strings.TrimSpace(dsn) != "" {
		cfg.Database.DSN = dsn
	}
	if strings.TrimSpace(broker) != "" {
		cfg.Bus.Broker = broker
	}
	contents, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(configPath, contents, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

// redactDSN hides the password of a URL-style DSN for logs.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
