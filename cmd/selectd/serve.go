package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/selector/internal/config"
	"github.com/vango-dev/selector/internal/errors"
	"github.com/vango-dev/selector/pkg/wsbridge"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		listen string
		async  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the selection over HTTP and WebSocket",
		Long: `Poll the configured source and serve the selection.

Endpoints:
  GET /selection          current selection
  GET /selection/server   selection of the first fetched document
  GET /ws                 WebSocket stream of selection changes
  GET /metrics            Prometheus metrics
  GET /healthz            liveness

Examples:
  selectd serve
  selectd serve --listen :9090 --async`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if async {
				cfg.Selector.Async = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, newLogger(cfg.LogLevel))
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&async, "async", false, "Evaluate the selection asynchronously")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.refresh(ctx); err != nil {
		logger.Warn("initial fetch failed", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.run(runCtx)
	}()

	bridge := wsbridge.New[any](a.inst, wsbridge.WithLogger(logger.With("component", "ws")))
	bridge.Start()
	defer bridge.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(a, bridge),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "source", cfg.Source.Kind, "path", cfg.Selector.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			cancel()
			<-done
			return errors.New("S160").Wrap(err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}
	cancel()
	<-done
	return nil
}
