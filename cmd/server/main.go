package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/trogers1052/portfolio-service/internal/api"
	"github.com/trogers1052/portfolio-service/internal/config"
	"github.com/trogers1052/portfolio-service/internal/engine"
	"github.com/trogers1052/portfolio-service/internal/kafka"
	"github.com/trogers1052/portfolio-service/internal/quotes"
	"github.com/trogers1052/portfolio-service/internal/redis"
	"github.com/trogers1052/portfolio-service/internal/storage"
	mongostore "github.com/trogers1052/portfolio-service/internal/storage/mongo"
	"github.com/trogers1052/portfolio-service/internal/storage/postgres"
)

func main() {
	cfg := config.MustLoad()
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the selected storage backend
	var (
		portfolioStore storage.PortfolioStore
		userStore      storage.UserStore
		storeHC        api.HealthChecker
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.New(cfg.Database.ConnectionString())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := runMigrations(cfg.Database.MigrationDir, cfg.Database.ConnectionString()); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
		slog.Info("connected to PostgreSQL backend")

		portfolioStore, userStore, storeHC = db, db, db

	case config.BackendMongo:
		ms, err := mongostore.New(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer ms.Close(context.Background())
		slog.Info("connected to MongoDB backend")

		portfolioStore, userStore, storeHC = ms, ms, ms

	default:
		log.Fatalf("Unknown storage backend: %q", cfg.Backend)
	}

	// Connect Redis for the quote cache
	var cache api.QuoteCache
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		slog.Warn("failed to connect to Redis, continuing without quote cache", slog.String("err", err.Error()))
	} else {
		defer redisClient.Close()
		cache = redisClient
		slog.Info("connected to Redis quote cache")
	}

	// Create Kafka producer for order events
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()
	slog.Info("Kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers), slog.String("topic", cfg.Kafka.Topic))

	quotesClient := quotes.New(cfg.QuoteAPI)
	eng := engine.New(portfolioStore, quotesClient)

	handler := api.NewHandler(eng, portfolioStore, userStore, quotesClient, cache, producer, storeHC)
	router := api.SetupRoutes(handler)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", slog.String("addr", addr), slog.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("server stopped")
}

func runMigrations(migrationDir, databaseURL string) error {
	m, err := migrate.New(migrationDir, databaseURL)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err == migrate.ErrNoChange {
		slog.Info("no migrations to apply; database is up to date")
	}

	return nil
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
