package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rsoreplay/internal/snapshot"
)

func statesCmd() *cobra.Command {
	var from, to string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "states <session>",
		Short: "List the logged snapshots of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			return runStates(cmd, args[0], window, asJSON)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Inclusive RFC 3339 lower bound")
	cmd.Flags().StringVar(&to, "to", "", "Inclusive RFC 3339 upper bound")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print snapshots as JSON")
	return cmd
}

func runStates(cmd *cobra.Command, sessionID string, window snapshot.TimeRange, asJSON bool) error {
	ctx := context.Background()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, _, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	svc, err := newReplayService(cfg, db, logger)
	if err != nil {
		return err
	}

	states, err := svc.GetStates(ctx, sessionID, window)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(states)
	}
	if len(states) == 0 {
		fmt.Fprintf(out, "No snapshots for %q.\n", sessionID)
		return nil
	}
	for _, s := range states {
		alive := 0
		for _, m := range s.Entities.Movables {
			if m.Alive {
				alive++
			}
		}
		fmt.Fprintf(out, "[%d] %s  movables: %d (%d alive)  statics: %d\n",
			s.Sequence, s.Timestamp.Format(time.RFC3339Nano), len(s.Entities.Movables), alive, len(s.Entities.Statics))
	}
	return nil
}

func parseWindow(from, to string) (snapshot.TimeRange, error) {
	var window snapshot.TimeRange
	if strings.TrimSpace(from) != "" {
		ts, err := time.Parse(time.RFC3339Nano, from)
		if err != nil {
			return window, fmt.Errorf("--from: %w", err)
		}
		window.From = &ts
	}
	if strings.TrimSpace(to) != "" {
		ts, err := time.Parse(time.RFC3339Nano, to)
		if err != nil {
			return window, fmt.Errorf("--to: %w", err)
		}
		window.To = &ts
	}
	return window, window.Validate()
}
