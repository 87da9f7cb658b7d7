// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/internal/auth/memory"
	authpg "github.com/eventhub/eventauth/internal/auth/postgres"
	"github.com/eventhub/eventauth/internal/config"
	"github.com/eventhub/eventauth/internal/httpapi"
	"github.com/eventhub/eventauth/internal/logging"
	"github.com/eventhub/eventauth/internal/notify"
	"github.com/eventhub/eventauth/internal/observability"
	"github.com/eventhub/eventauth/internal/store"
	"github.com/eventhub/eventauth/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP API for registration, login and password recovery,
the metrics/health listener, and the periodic recovery code purger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// repositories bundles the stores selected by storage.driver.
type repositories struct {
	accounts auth.AccountRepository
	codes    auth.RecoveryCodeRepository
	close    func()
}

func openRepositories(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return &repositories{
			accounts: memory.NewAccountRepository(),
			codes:    memory.NewRecoveryCodeRepository(),
			close:    func() {},
		}, nil
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxAttempts: cfg.Database.ConnectAttempts,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &repositories{
		accounts: authpg.NewAccountRepository(pool),
		codes:    authpg.NewRecoveryCodeRepository(pool),
		close:    pool.Close,
	}, nil
}

// openChannel builds the notification channel selected by notify.driver,
// wrapped with delivery metrics.
func openChannel(ctx context.Context, cfg *config.Config, deps *ServeDeps, reg prometheus.Registerer, logger *slog.Logger) (auth.NotificationChannel, func(), error) {
	var (
		channel auth.NotificationChannel
		closeFn = func() {}
	)
	switch cfg.Notify.Driver {
	case config.NotifyRedis:
		client := deps.RedisFactory(cfg.Notify.RedisAddr)
		outbox, err := notify.NewRedisOutbox(client, cfg.Notify.RedisKey)
		if err != nil {
			_ = client.Close() //nolint:errcheck // constructor error takes precedence
			return nil, nil, err
		}
		if err := outbox.Ping(ctx); err != nil {
			_ = client.Close() //nolint:errcheck // ping error takes precedence
			return nil, nil, err
		}
		channel = outbox
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Warn("error closing redis client", "error", err)
			}
		}
	default:
		channel = notify.NewLogChannel(logger)
	}
	return notify.NewInstrumented(channel, reg), closeFn, nil
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until ctx is cancelled, a signal arrives or a listener fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault("eventauth", version, cfg.Log.Format)
	logger.Info("starting eventauth", "config", cfg.Redacted())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	var registry prometheus.Registerer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load)
		metrics = obsServer.Metrics()
		registry = obsServer.Registry()
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
		}
		defer stopServer(obsServer.Stop, "observability")
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	repos, err := openRepositories(ctx, cfg, deps, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "open storage").Wrap(err)
	}
	defer repos.close()

	channel, closeChannel, err := openChannel(ctx, cfg, deps, registry, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "open notification channel").Wrap(err)
	}
	defer closeChannel()

	notifier := auth.NewNotifier(channel, cfg.Notify.Timeout, logger)
	// Registered after closeChannel so pending deliveries finish first.
	defer notifier.Wait()

	api, recovery, err := buildAPI(cfg, repos, notifier, metrics, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "build services").Wrap(err)
	}

	apiServer := httpapi.NewServer(cfg.HTTP.Addr, api.Handler(), cfg.HTTP.ReadHeaderTimeout)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	var purgeWG sync.WaitGroup
	if cfg.Recovery.PurgeInterval > 0 {
		purgeWG.Add(1)
		go func() {
			defer purgeWG.Done()
			runPurger(ctx, recovery, cfg.Recovery.PurgeInterval, logger)
		}()
	}

	ready.Store(true)
	metricsAddr := ""
	if obsServer != nil {
		metricsAddr = obsServer.Addr()
	}
	if deps.OnReady != nil {
		deps.OnReady(apiServer.Addr(), metricsAddr)
	}
	cmd.Println("eventauth started")
	logger.Info("eventauth ready", "api_addr", apiServer.Addr(), "metrics_addr", metricsAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	cancel()
	purgeWG.Wait()

	logger.Info("shutdown complete")
	return nil
}

// buildAPI wires the services and the HTTP API.
func buildAPI(cfg *config.Config, repos *repositories, notifier *auth.Notifier, metrics *observability.Metrics, logger *slog.Logger) (*httpapi.API, *auth.RecoveryService, error) {
	policy, err := cfg.AuthPolicy()
	if err != nil {
		return nil, nil, err
	}
	issuer, err := auth.NewJWTIssuer(cfg.AuthToken())
	if err != nil {
		return nil, nil, err
	}
	hasher := auth.NewArgon2idHasher()
	opts := []auth.Option{auth.WithLogger(logger)}

	registration, err := auth.NewRegistrationService(repos.accounts, hasher, policy, notifier, opts...)
	if err != nil {
		return nil, nil, err
	}
	authSvc, err := auth.NewAuthService(repos.accounts, hasher, issuer, opts...)
	if err != nil {
		return nil, nil, err
	}
	recovery, err := auth.NewRecoveryService(repos.accounts, repos.codes, hasher, policy, notifier, cfg.AuthRecovery(), opts...)
	if err != nil {
		return nil, nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	api, err := httpapi.New(httpapi.Dependencies{
		Registration:       registration,
		Auth:               authSvc,
		Recovery:           recovery,
		Logger:             logger,
		Metrics:            metrics,
		UniformLoginErrors: cfg.HTTP.UniformLoginErrors,
	})
	if err != nil {
		return nil, nil, err
	}
	return api, recovery, nil
}

// Purger is the part of auth.RecoveryService the purge loop needs.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// runPurger deletes expired and consumed recovery codes every interval until
// ctx is done.
func runPurger(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errutil.LogWarn(ctx, logger, "recovery code purge failed", err)
				}
				continue
			}
			observability.RecordPurged(n)
			if n > 0 {
				logger.Info("purged recovery codes", "count", n)
			}
		}
	}
}

func stopServer(stop func(context.Context) error, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
