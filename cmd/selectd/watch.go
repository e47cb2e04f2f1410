package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/selector/internal/config"
	"github.com/vango-dev/selector/pkg/hostbind"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the selection every time it changes",
		Long: `Poll the configured source and print the selection as one JSON
line per change. Polls that leave the selection unchanged print nothing.

Examples:
  selectd watch
  selectd watch --interval 500ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.Source.Interval = config.Duration(interval)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Poll interval (default from config)")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := newLogger(cfg.LogLevel)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(out)
	b := hostbind.New[any](a.inst, nil, func(v any) {
		if err := enc.Encode(v); err != nil {
			logger.Error("write selection", "error", err)
		}
	}, hostbind.WithLogger(logger))

	if err := a.refresh(ctx); err != nil {
		return fmt.Errorf("initial fetch: %w", err)
	}
	b.Start()
	defer b.Stop()

	a.run(ctx)
	return nil
}
