package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/selector/internal/config"
	"github.com/vango-dev/selector/internal/errors"
)

func getCmd(flags *globalFlags) *cobra.Command {
	var server bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch once and print the selection",
		Long: `Fetch the configured source once and print the selection as JSON.

Examples:
  selectd get
  selectd get --server`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runGet(cmd.Context(), cfg, server, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&server, "server", false, "Print the server selection")
	return cmd
}

func runGet(ctx context.Context, cfg *config.Config, server bool, out io.Writer) error {
	a, err := newApp(cfg, newLogger(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.refresh(ctx); err != nil {
		return err
	}

	var v any
	if server {
		var ok bool
		v, ok, err = a.inst.ServerSelection(ctx)
		if err == nil && !ok {
			return errors.New("S141")
		}
	} else {
		v, err = a.awaitSelection(ctx)
	}
	if err != nil {
		return errors.New("S140").Wrap(err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
