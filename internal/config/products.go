package config

import (
	"fmt"
	"os"
	"time"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	defaultServiceName     = "product-catalog"
	defaultStorageDriver   = StorageDriverPostgres
	defaultSQLitePath      = "products.db"
	defaultHTTPAddr        = ":8080"
	defaultMigrationsPath  = "migrations/products"
	defaultShutdownTimeout = 10 * time.Second
	defaultCacheTTL        = 5 * time.Minute

	defaultDBMaxOpenConns    = 25
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = 5 * time.Minute
	defaultDBPingTimeout     = 5 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

type Products struct {
	ServiceName       string
	StorageDriver     string
	DatabaseURL       string
	SQLitePath        string
	RabbitMQURL       string
	RedisAddr         string
	CacheTTL          time.Duration
	HTTPAddr          string
	MigrationsPath    string
	ShutdownTimeout   time.Duration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBPingTimeout     time.Duration
	ReadHeaderTimeout time.Duration
}

// LoadProducts reads the catalog service configuration from the environment.
// RABBITMQ_URL and REDIS_ADDR are optional; leaving them empty disables event
// publishing and read caching respectively.
func LoadProducts() (Products, error) {
	cfg := Products{
		ServiceName:       getEnv("SERVICE_NAME", defaultServiceName),
		StorageDriver:     getEnv("STORAGE_DRIVER", defaultStorageDriver),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", defaultSQLitePath),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		HTTPAddr:          getEnv("HTTP_ADDR", defaultHTTPAddr),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", defaultMigrationsPath),
		DBMaxOpenConns:    defaultDBMaxOpenConns,
		DBMaxIdleConns:    defaultDBMaxIdleConns,
		DBConnMaxLifetime: defaultDBConnMaxLifetime,
		DBPingTimeout:     defaultDBPingTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	ttl, err := getDuration("CACHE_TTL", defaultCacheTTL)
	if err != nil {
		return Products{}, err
	}
	cfg.CacheTTL = ttl

	timeout, err := getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if err != nil {
		return Products{}, err
	}
	cfg.ShutdownTimeout = timeout

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Products{}, fmt.Errorf("DATABASE_URL is required")
		}
	case StorageDriverSQLite:
	default:
		return Products{}, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverSQLite, cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}
