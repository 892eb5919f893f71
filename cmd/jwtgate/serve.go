package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/jwtgate"
	"github.com/MrEthical07/jwtgate/httpapi"
	"github.com/MrEthical07/jwtgate/metrics/export/prometheus"
	"github.com/MrEthical07/jwtgate/middleware"
	"github.com/spf13/cobra"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the token endpoints over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(flags.configPath, nil)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.logLevel)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func buildEngine(cfg appConfig, be *backend, logger *slog.Logger) (*jwtgate.Engine, error) {
	b := jwtgate.New().
		WithConfig(cfg.Config).
		WithStore(be.store).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(jwtgate.NewSlogSink(logger))
	}
	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("engine build: %w", err)
	}
	return engine, nil
}

func serve(ctx context.Context, cfg appConfig, logger *slog.Logger) error {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Warn("jwtgate: close backend", "error", err)
		}
	}()

	engine, err := buildEngine(cfg, be, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	logSecurityReport(logger, engine.SecurityReport())
	if len(cfg.Server.Users) == 0 {
		logger.Warn("jwtgate: no users configured, serving the demo admin account")
	}

	go runSweeper(ctx, be.store, cfg.Store.SweepInterval, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServerHandler(engine, cfg, be, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("jwtgate: listening", "addr", cfg.Server.Addr, "version", Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("jwtgate: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newServerHandler mounts the token API and, when metrics are on, the
// Prometheus endpoint, and puts the whole mux behind the gate.
func newServerHandler(engine *jwtgate.Engine, cfg appConfig, be *backend, logger *slog.Logger) http.Handler {
	gate := middleware.Gate(engine, middleware.Config{
		Header:         cfg.Gate.Header,
		ProtectedPaths: cfg.Gate.ProtectedPaths,
		ExcludedPaths:  cfg.Gate.ExcludedPaths,
		Logger:         logger,
	})

	opts := httpapi.Options{
		Header: cfg.Gate.Header,
		Logger: logger,
	}
	if len(cfg.Server.Users) > 0 {
		opts.Authenticator = cfg.Server.Users
	}
	if be != nil && be.limiter != nil {
		opts.Limiter = be.limiter
	}

	mux := http.NewServeMux()
	httpapi.New(engine, opts).Register(mux)
	if cfg.Metrics.Enabled && cfg.Server.MetricsPath != "" {
		mux.Handle("GET "+cfg.Server.MetricsPath, prometheus.NewCollector(engine).Handler())
	}
	return gate(mux)
}

func logSecurityReport(logger *slog.Logger, r jwtgate.SecurityReport) {
	logger.Info("jwtgate: security report",
		"alg", r.SigningAlgorithm,
		"issuer", r.Issuer,
		"secret_bytes", r.SecretLength,
		"access_ttl", r.AccessTTL,
		"refresh_ttl", r.RefreshTTL,
		"refresh", r.RefreshEnabled,
		"rotation", r.RefreshRotationEnabled,
		"reuse_detection", r.RefreshReuseDetectionEnabled,
		"store", r.StoreBackend,
		"protected_paths", r.ProtectedPaths,
		"excluded_paths", r.ExcludedPaths,
		"audit", r.AuditEnabled,
	)
}
