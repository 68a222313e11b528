package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vidsift/vidsift/internal/config"
	"github.com/vidsift/vidsift/internal/handlers"
	"github.com/vidsift/vidsift/internal/healthcheck"
	queuechecker "github.com/vidsift/vidsift/internal/healthcheck/checkers/queue"
	sessionchecker "github.com/vidsift/vidsift/internal/healthcheck/checkers/session"
	storechecker "github.com/vidsift/vidsift/internal/healthcheck/checkers/store"
	"github.com/vidsift/vidsift/internal/ingest"
	"github.com/vidsift/vidsift/internal/logger"
	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/replay"
	"github.com/vidsift/vidsift/internal/report"
	"github.com/vidsift/vidsift/internal/server"
	"github.com/vidsift/vidsift/internal/session"
	"github.com/vidsift/vidsift/internal/store"
	"github.com/vidsift/vidsift/internal/transport"
	"github.com/vidsift/vidsift/internal/transport/bridge"
	"github.com/vidsift/vidsift/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the channel watcher and its ops server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStore,
			provideQueue,
			provideCredentials,
			provideDialer,
			provideSessionManager,
			provideDedupCache,
			provideReporter,
			providePipeline,
			provideReplayService,
			provideReconciler,
			provideHealthService,
			handlers.NewPingHandler,
			handlers.NewHealthHandler,
			provideStatusHandler,
			provideServer,
		),
		fx.Invoke(
			startDedupJanitor,
			startSession,
			startReconciler,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Channel.ID == "" {
		return config.Config{}, fmt.Errorf("channel.id is required to run serve")
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *store.Client {
	client := store.NewClient(log, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection,
		cfg.Mongo.ConnectAttempts, cfg.Mongo.RetryDelay())
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close(ctx) }})
	return client
}

func provideQueue(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *queue.Client {
	client := queue.NewClient(log, cfg.Queue.URL, cfg.Queue.Name,
		cfg.Queue.ConnectAttempts, cfg.Queue.RetryDelay())
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return client
}

func provideCredentials(cfg config.Config) transport.CredentialStore {
	return transport.FileCredentials{Dir: cfg.Transport.CredentialsDir}
}

func provideDialer(log *slog.Logger, cfg config.Config) transport.Dialer {
	return bridge.NewDialer(log, cfg.Transport.BridgeURL)
}

func provideSessionManager(log *slog.Logger, dialer transport.Dialer, creds transport.CredentialStore, cfg config.Config) *session.Manager {
	return session.NewManager(log, dialer, creds, session.Policies{
		Standard:    retryPolicy(cfg.Retry.Standard),
		Unavailable: retryPolicy(cfg.Retry.Unavailable),
	})
}

func retryPolicy(cfg config.BackoffConfig) session.RetryPolicy {
	return session.RetryPolicy{
		BaseDelay:   cfg.Base(),
		Multiplier:  cfg.Multiplier,
		MaxDelay:    cfg.Max(),
		MaxAttempts: cfg.MaxAttempts,
	}
}

func provideDedupCache(cfg config.Config) *ingest.DedupCache {
	return ingest.NewDedupCache(cfg.Dedup.Retention())
}

func provideReporter(log *slog.Logger, st *store.Client, q *queue.Client, mgr *session.Manager) *report.Builder {
	return report.NewBuilder(log, st, q, mgr)
}

func providePipeline(log *slog.Logger, st *store.Client, q *queue.Client, mgr *session.Manager, dedup *ingest.DedupCache, reporter *report.Builder, cfg config.Config) *ingest.Pipeline {
	pipeline := ingest.NewPipeline(log, st, q, mgr, dedup, cfg.Channel.ID)
	pipeline.SetReporter(reporter)
	pipeline.SetOperatorID(cfg.Channel.OperatorID)
	pipeline.SetStatusToken(cfg.Channel.StatusToken)
	return pipeline
}

func provideReplayService(log *slog.Logger, st *store.Client, q *queue.Client) *replay.Service {
	return replay.NewService(log, st, q)
}

func provideReconciler(log *slog.Logger, service *replay.Service, cfg config.Config) *replay.Reconciler {
	return replay.NewReconciler(log, service, cfg.Replay.Schedule, int64(cfg.Replay.BatchLimit))
}

func provideHealthService(log *slog.Logger, st *store.Client, q *queue.Client, mgr *session.Manager) *healthcheck.Service {
	return healthcheck.NewService(log,
		storechecker.NewChecker(log, st),
		queuechecker.NewChecker(log, q),
		sessionchecker.NewChecker(log, mgr),
	)
}

func provideStatusHandler(log *slog.Logger, reporter *report.Builder) *handlers.StatusHandler {
	return handlers.NewStatusHandler(log, reporter)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, health *handlers.HealthHandler, status *handlers.StatusHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, ping, health, status)
}

func startDedupJanitor(lc fx.Lifecycle, log *slog.Logger, cache *ingest.DedupCache, cfg config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			cache.StartJanitor(ctx, cfg.Dedup.EvictionPeriod(), log)
			return nil
		},
		OnStop: func(_ context.Context) error { cancel(); return nil },
	})
}

func startSession(lc fx.Lifecycle, logger *slog.Logger, mgr *session.Manager, pipeline *ingest.Pipeline, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			mgr.OnBatch(pipeline.HandleBatch)
			go func() {
				if err := mgr.Connect(context.Background()); err != nil {
					logger.Error("session connect failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error { return mgr.Close() },
	})
}

func startReconciler(lc fx.Lifecycle, cfg config.Config, reconciler *replay.Reconciler) {
	if !cfg.Replay.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return reconciler.Start() },
		OnStop:  func(ctx context.Context) error { return reconciler.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting vidsift %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
