package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemfarm/config"
	"gemfarm/core"
	"gemfarm/gateway/middleware"
	"gemfarm/gateway/routes"
	nativecommon "gemfarm/native/common"
	"gemfarm/observability/logging"
	telemetry "gemfarm/observability/otel"
	"gemfarm/storage"
	"gemfarm/storage/eventlog"
)

const serviceName = "farmd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to farmd configuration (toml or yaml)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		slog.Error("farmd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	metadataAuthority, err := cfg.MetadataAuthorityAddress()
	if err != nil {
		return err
	}
	stream := core.NewEventStream(cfg.EventLog.HistoryLimit)
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithStream(stream),
		core.WithPauses(nativecommon.NewPauseSet(cfg.Pauses.PausedModules()...)),
		core.WithMetadataAuthority(metadataAuthority),
	}

	var (
		events      routes.EventQuerier
		idempotency middleware.IdempotencyStore
	)
	if cfg.EventLog.Driver != config.EventLogNone {
		evlog, err := eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer evlog.Close()
		last, err := evlog.LastSequence(ctx)
		if err != nil {
			return fmt.Errorf("read event log sequence: %w", err)
		}
		stream.Resume(last)
		opts = append(opts, core.WithSink(evlog))
		events = evlog
		idempotency = evlog
		logger.Info("event log ready", slog.String("driver", cfg.EventLog.Driver), slog.Uint64("sequence", last))
	}

	ledger, err := core.NewLedger(db, opts...)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	rateLimits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		rateLimits[key] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}
	handler, err := routes.New(routes.Config{
		Ledger: ledger,
		Events: events,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:     cfg.Auth.Enabled,
			HMACSecret:  cfg.Auth.HMACSecret,
			Issuer:      cfg.Auth.Issuer,
			Audience:    cfg.Auth.Audience,
			SignerClaim: cfg.Auth.SignerClaim,
			ClockSkew:   time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(rateLimits, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: true,
			Enabled:     true,
		}, logger),
		Idempotency: idempotency,
		CORS:        middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		Logger:      logger,
		EnableMint:  cfg.EnableMint,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled; signer taken from " + middleware.HeaderSigner)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("farmd listening", slog.String("addr", cfg.ListenAddress), slog.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return storage.NewMemDB(), nil
	case config.StorageLevelDB:
		return storage.NewLevelDB(cfg.Path)
	case config.StorageBolt:
		return storage.NewBoltDB(cfg.Path, nil)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
