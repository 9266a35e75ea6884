package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"product-catalog/internal/config"
	"product-catalog/internal/products"
	producthttp "product-catalog/internal/products/http"
	"product-catalog/internal/products/messaging"
	"product-catalog/internal/products/repository"
	"product-catalog/internal/products/service"

	_ "product-catalog/docs"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

const (
	metricCreatedTotal  = "products_created_total"
	metricUpdatedTotal  = "products_updated_total"
	metricDeletedTotal  = "products_deleted_total"
	migrateSourcePrefix = "file://"
	postgresDriverName  = "postgres"
)

var version = "dev"

// @title        Product Catalog API
// @version      1.0
// @description  Product catalog service: CRUD and attribute search over products.
// @host         localhost:8080
// @BasePath     /
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	os.Exit(run(logger))
}

func run(logger *slog.Logger) int {
	cfg, err := config.LoadProducts()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("open store", "driver", cfg.StorageDriver, "error", err)
		return 1
	}
	defer closeStore()

	repo := service.FilteringRepository(store)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.DBPingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("ping redis", "addr", cfg.RedisAddr, "error", err)
			return 1
		}
		repo = repository.NewCached(store, client, cfg.CacheTTL, logger)
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	var publisher service.Publisher = messaging.NewLogPublisher(logger)
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			return 1
		}
		defer rabbitConn.Close()

		rabbitPublisher, err := messaging.NewRabbitPublisher(rabbitConn, products.EventsQueue)
		if err != nil {
			logger.Error("init publisher", "error", err)
			return 1
		}
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	} else {
		logger.Info("RABBITMQ_URL not set, product events are only logged")
	}

	counters := service.Counters{
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricCreatedTotal,
			Help: "Total number of products created",
		}),
		Updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricUpdatedTotal,
			Help: "Total number of products updated",
		}),
		Deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricDeletedTotal,
			Help: "Total number of products deleted",
		}),
	}
	prometheus.MustRegister(counters.Created, counters.Updated, counters.Deleted)

	svc := service.New(repo, publisher, logger, counters)
	handler := producthttp.NewHandler(svc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(producthttp.RequestIDMiddleware())
	router.Use(producthttp.AccessLogMiddleware(logger))
	producthttp.RegisterRoutes(router, handler, store, producthttp.ServiceInfo{
		Name:    cfg.ServiceName,
		Version: version,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("products service started", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}
	logger.Info("products service stopped")
	return exitCode
}

type catalogStore interface {
	service.FilteringRepository
	repository.Store
}

func openStore(cfg config.Products, logger *slog.Logger) (catalogStore, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageDriverSQLite:
		repo, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite store", "path", cfg.SQLitePath)
		return repo, func() { _ = repo.Close() }, nil
	default:
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}

		db, err := sql.Open(postgresDriverName, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}

		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.DBPingTimeout)
		defer pingCancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}

		return repository.NewPostgres(db), func() { _ = db.Close() }, nil
	}
}

func runMigrations(databaseURL, migrationsPath string) error {
	m, err := migrate.New(migrateSourcePrefix+migrationsPath, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
