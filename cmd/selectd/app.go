package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "modernc.org/sqlite"

	"github.com/vango-dev/selector/internal/config"
	"github.com/vango-dev/selector/internal/errors"
	"github.com/vango-dev/selector/pkg/observe"
	"github.com/vango-dev/selector/pkg/scheduler"
	"github.com/vango-dev/selector/pkg/selector"
	"github.com/vango-dev/selector/pkg/source"
	"github.com/vango-dev/selector/pkg/source/s3source"
	"github.com/vango-dev/selector/pkg/source/sqlsource"
)

// app wires a poller, a selector instance and its observers.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	poller   *source.Poller[*document]
	inst     *selector.Instance[*document, any]
	loop     *scheduler.Loop
	registry *prometheus.Registry

	// settled receives a signal after every resolution settles, committed
	// or not.
	settled chan struct{}

	closers []func() error
	once    sync.Once
}

// loadConfig loads the config, applies command-line overrides and validates.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// newApp builds the pipeline described by cfg. Nothing runs until run.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		settled:  make(chan struct{}, 1),
	}

	fetcher, err := a.newFetcher()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.poller = source.NewPoller(fetcher,
		source.WithInterval(cfg.Interval()),
		source.WithLogger(logger.With("component", "poller")),
		source.WithErrorHandler(func(err error) {
			logger.Warn("poll failed", "error", errors.FromError(err, "S121"))
		}),
	)

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs := observe.Multi(
		observe.NewPrometheus(
			observe.WithRegistry(a.registry),
			observe.WithNamespace(cfg.Metrics.Namespace),
		),
		observe.NewTracing(observe.WithTracerName("selectd")),
		settleSignal{ch: a.settled},
	)

	opts := []selector.Option{
		selector.WithLogger(logger.With("component", "selector")),
		selector.WithObserver(obs),
		selector.WithOverlapPolicy(cfg.Overlap()),
	}
	if cfg.Selector.Equal == config.EqualDeep {
		opts = append(opts, selector.WithEqual(selector.DeepEqual[any]))
	}
	if cfg.Selector.Async {
		a.loop = scheduler.NewLoop(scheduler.WithLogger(logger.With("component", "scheduler")))
		opts = append(opts, selector.WithScheduler(a.loop))
	}

	a.inst = selector.New(a.poller, pathSelector(cfg.Selector.Path, cfg.Selector.Async), opts...)
	a.closers = append(a.closers, a.inst.Close)
	return a, nil
}

// newFetcher opens the configured backend.
func (a *app) newFetcher() (source.Fetcher[*document], error) {
	src := a.cfg.Source
	switch src.Kind {
	case config.SourceFile:
		return source.File(src.Path, decodeDocument), nil

	case config.SourceS3:
		opts := s3.Options{
			Region:       src.Region,
			UsePathStyle: src.UsePathStyle,
			Credentials:  aws.AnonymousCredentials{},
		}
		if src.Endpoint != "" {
			opts.BaseEndpoint = aws.String(src.Endpoint)
		}
		if src.AccessKeyID != "" {
			creds := aws.Credentials{
				AccessKeyID:     src.AccessKeyID,
				SecretAccessKey: src.SecretAccessKey,
				Source:          "selectd",
			}
			opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return creds, nil
			})
		}
		return s3source.New(s3.New(opts), src.Bucket, src.Key, decodeDocument), nil

	case config.SourceSQL:
		db, err := sql.Open(src.Driver, src.DSN)
		if err != nil {
			return nil, errors.New("S122").Wrap(err)
		}
		a.closers = append(a.closers, db.Close)

		var opts []sqlsource.Option
		if src.VersionQuery != "" {
			opts = append(opts, sqlsource.WithVersionQuery(src.VersionQuery))
		}
		return sqlsource.New(db, src.Query, scanDocument, opts...), nil
	}
	return nil, errors.New("S120").WithDetail("Got source.kind " + src.Kind)
}

// run polls and, for async selections, drives the scheduler loop until ctx
// is done.
func (a *app) run(ctx context.Context) {
	var wg sync.WaitGroup
	if a.loop != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.loop.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.poller.Run(ctx)
	}()
	wg.Wait()
}

// awaitSelection reads the selection and, if a resolution is pending,
// waits for it to settle.
func (a *app) awaitSelection(ctx context.Context) (any, error) {
	v, err := a.inst.Get()
	if err != nil || !a.inst.Pending() {
		return v, err
	}

	changed := make(chan struct{}, 1)
	unsubscribe := a.inst.Subscribe(func() { wake(changed) })
	defer unsubscribe()

	if a.loop != nil {
		loopCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go a.loop.Run(loopCtx)
	}

	// A committed resolution notifies subscribers; a rejected or stale one
	// only reaches the observers.
	for a.inst.Pending() {
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-changed:
		case <-a.settled:
		}
	}
	return a.inst.Get()
}

// settleSignal wakes awaitSelection when a resolution settles.
type settleSignal struct {
	selector.NopObserver
	ch chan struct{}
}

func (s settleSignal) OnResolveSettle(context.Context, string, selector.Origin, time.Duration, bool, error) {
	wake(s.ch)
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// refresh fetches once. Errors carry the S121 code.
func (a *app) refresh(ctx context.Context) error {
	if _, err := a.poller.Refresh(ctx); err != nil {
		return errors.New("S121").Wrap(err)
	}
	return nil
}

// Close releases the instance and the backend.
func (a *app) Close() {
	a.once.Do(func() {
		if a.loop != nil {
			a.loop.Stop()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.logger.Warn("close failed", "error", err)
			}
		}
	})
}
