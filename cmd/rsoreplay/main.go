package main

import (
	"os"

	"github.com/spf13/cobra"

	"rsoreplay/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "rsoreplay",
		Short: "Game session snapshot log and replay renderer",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the project config file")
	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(statesCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
