package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rsoreplay/internal/replay"
)

func replayCmd() *cobra.Command {
	var (
		fps      int
		speed    float64
		from, to string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "replay <session>",
		Short: "Render a session into an MP4 replay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			return runReplay(cmd, replay.Request{
				SessionID: args[0],
				FPS:       fps,
				Speed:     speed,
				From:      window.From,
				To:        window.To,
				Output:    output,
			})
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 0, "Output frame rate (default from config)")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	cmd.Flags().StringVar(&from, "from", "", "Inclusive RFC 3339 lower bound")
	cmd.Flags().StringVar(&to, "to", "", "Inclusive RFC 3339 upper bound")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: a new file under video.temp_dir)")
	return cmd
}

func runReplay(cmd *cobra.Command, req replay.Request) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, _, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	svc, err := newReplayService(cfg, db, logger)
	if err != nil {
		return err
	}

	result, err := svc.CreateReplay(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Path)
	fmt.Fprintf(out, "  Snapshots: %d\n", result.Snapshots)
	fmt.Fprintf(out, "  Frames:    %d at %d fps (%.2fs)\n", result.Frames, result.FPS, result.Duration.Seconds())
	return nil
}
