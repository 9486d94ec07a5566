// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dayplan/dayplan/internal/auth"
	authpg "github.com/dayplan/dayplan/internal/auth/postgres"
	"github.com/dayplan/dayplan/internal/config"
	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/internal/httpapi"
	"github.com/dayplan/dayplan/internal/logging"
	"github.com/dayplan/dayplan/internal/notify"
	"github.com/dayplan/dayplan/internal/observability"
	"github.com/dayplan/dayplan/internal/store"
	"github.com/dayplan/dayplan/internal/task"
	taskpg "github.com/dayplan/dayplan/internal/task/postgres"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API together with the metrics and health probe listener
and the background sweeper for expired password reset codes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(config.Source{Path: path, Flags: cmd.Flags()})
			if err != nil {
				return oops.With("operation", "load configuration").Wrap(err)
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("http-addr", defaults.HTTP.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("bucket-mode", defaults.Tasks.BucketMode, "task bucket mode (day or due)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL (overridden by DATABASE_URL)")

	return cmd
}

// application is the wired set of services behind the API.
type application struct {
	handler  http.Handler
	notifier *notify.Async
	janitor  *auth.Janitor
}

// buildApplication wires repositories, services and the HTTP API over db.
func buildApplication(cfg *config.Config, db store.Pool, reg prometheus.Registerer, logger *slog.Logger) (*application, error) {
	clock := core.SystemClock{}
	tx := store.NewTransactor(db)

	kind, err := task.ParseBucketKind(cfg.Tasks.BucketMode)
	if err != nil {
		return nil, err
	}
	tasks, err := task.NewService(taskpg.NewTaskRepository(db), tx,
		task.WithClock(clock),
		task.WithBucketKind(kind),
		task.WithMetrics(task.NewMetrics(reg)),
		task.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	users := authpg.NewUserRepository(db)
	tokens := authpg.NewTokenRepository(db)
	resets := authpg.NewPasswordResetRepository(db)
	opts := []auth.Option{
		auth.WithClock(clock),
		auth.WithLogger(logger),
		auth.WithMinPasswordLength(cfg.Auth.MinPasswordLength),
		auth.WithMaxTokensPerUser(cfg.Auth.MaxTokensPerUser),
		auth.WithResetCodeTTL(cfg.Auth.ResetCodeTTL),
	}

	credentials, err := auth.NewCredentialStore(users, tx, auth.NewArgon2idHasher(), opts...)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewTokenSigner([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenTTL, clock)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(users, tokens, tx, signer, opts...)
	if err != nil {
		return nil, err
	}

	notifier, err := notify.NewAsync(notify.NewLogNotifier(logger),
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithLogger(logger),
		notify.WithRegisterer(reg),
	)
	if err != nil {
		return nil, err
	}
	resetService, err := auth.NewPasswordResetService(users, resets, tx, credentials, sessions, notifier, opts...)
	if err != nil {
		return nil, err
	}
	accounts, err := auth.NewAccountService(users, resets, tx, credentials, sessions, opts...)
	if err != nil {
		return nil, err
	}
	janitor, err := auth.NewJanitor(resetService, cfg.Janitor.Interval, logger)
	if err != nil {
		return nil, err
	}

	api, err := httpapi.NewServer(tasks, accounts, resetService, sessions,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(httpapi.NewMetrics(reg)),
		httpapi.WithCORSOrigin(cfg.HTTP.CORSOrigin),
	)
	if err != nil {
		return nil, err
	}

	return &application{handler: api.Routes(), notifier: notifier, janitor: janitor}, nil
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until a signal arrives, ctx is cancelled or a listener fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "dayplan",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})

	logger.Info("starting dayplan",
		"http_addr", cfg.HTTP.Addr,
		"bucket_mode", cfg.Tasks.BucketMode,
	)

	db, err := deps.PoolFactory(ctx, store.PoolConfig{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	registry := observability.NewRegistry(version)
	app, err := buildApplication(cfg, db, registry, logger)
	if err != nil {
		return oops.With("operation", "wire services").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var background sync.WaitGroup
	background.Go(func() { app.janitor.Run(ctx) })

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, registry, db.Ping, logger)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			cancel()
			background.Wait()
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		cancel()
		background.Wait()
		stopObservability(obsServer, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Dayplan API started")
	logger.Info("dayplan ready", "http_addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("API server failed", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	cancel()
	background.Wait()
	if err := app.notifier.Close(shutdownCtx); err != nil {
		logger.Warn("error draining reset notifications", "error", err)
	}
	stopObservability(obsServer, logger)

	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure. It exits
// when the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
