package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/signup/internal/api"
	"example.com/signup/internal/auth"
	"example.com/signup/internal/catalog"
	"example.com/signup/internal/config"
	"example.com/signup/internal/domain"
	"example.com/signup/internal/observability"
	"example.com/signup/internal/outbox"
	"example.com/signup/internal/persistence/postgres"
	httptransport "example.com/signup/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("signup api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	activities, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	directory, err := domain.NewDirectory(activities)
	if err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}

	serviceOpts := []domain.Option{domain.WithLogger(logger.Named("roster"))}
	handlerOpts := []api.Option{api.WithLogger(logger.Named("api")), api.WithAuth(cfg.AuthEnabled)}

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate audit log: %w", err)
		}
		handlerOpts = append(handlerOpts, api.WithHistory(postgres.NewEventLog(pool)))
	}

	var background sync.WaitGroup
	if cfg.EventsEnabled {
		store := outbox.NewMemoryStore(outbox.DefaultCapacity)
		dlq := outbox.NewDLQ(outbox.DefaultCapacity, cfg.DLQBaseDelay)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(store, producer, registry, dlq, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger.Named("outbox"))
		manager := outbox.NewDLQManager(dlq, store, cfg.DLQMaxRetries, logger.Named("dlq"))

		background.Add(2)
		go func() {
			defer background.Done()
			dispatcher.Start(ctx)
		}()
		go func() {
			defer background.Done()
			manager.Start(ctx, cfg.DLQPollInterval, cfg.OutboxBatchSize)
		}()

		serviceOpts = append(serviceOpts, domain.WithRecorder(store))
		logger.Info("roster events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	service := domain.NewService(directory, serviceOpts...)
	handler := api.NewHandler(service, handlerOpts...)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	middleware := []httptransport.Middleware{
		httptransport.AccessLog(logger.Named("http")),
		httptransport.CORS(cfg.CORSAllowedOrigin),
	}
	if cfg.AuthEnabled {
		authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.ReadOnlySkipper)
		middleware = append(middleware, authMiddleware.Wrap)
	}

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux, middleware...))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("signup api listening",
			zap.String("address", cfg.HTTPAddress),
			zap.Int("activities", len(activities)),
			zap.Bool("auth", cfg.AuthEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		cancel()
		background.Wait()
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	background.Wait()
	return nil
}
