package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rsoreplay/internal/ingest"
)

func ingestCmd() *cobra.Command {
	var sessionID, start string
	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Append newline-delimited game state payloads to a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(sessionID) == "" {
				return fmt.Errorf("--session is required")
			}
			var startAt time.Time
			if start != "" {
				parsed, err := time.Parse(time.RFC3339Nano, start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				startAt = parsed
			}
			return runIngest(cmd, sessionID, args[0], startAt)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to append to")
	cmd.Flags().StringVar(&start, "start", "", "Timestamp of the first payload (RFC3339, default now)")
	return cmd
}

func runIngest(cmd *cobra.Command, sessionID, path string, start time.Time) error {
	ctx := context.Background()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	db, _, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	timeline := ingest.Timeline{Start: start, SourceFPS: float64(cfg.Game.SourceFPS)}
	result, err := ingest.Load(ctx, ingest.NewSequencer(db), sessionID, r, timeline)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingestion complete.")
	fmt.Fprintf(out, "  Snapshots appended: %d\n", result.Appended)
	fmt.Fprintf(out, "  Messages ignored:   %d\n", result.Ignored)

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", item)
		}
	}
	return nil
}
