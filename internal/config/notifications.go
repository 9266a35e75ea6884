package config

import (
	"fmt"
	"strconv"
	"time"
)

const (
	defaultNotificationsQueue = "products.events"
	defaultConsumerTag        = "catalog-notifications"
	defaultPrefetch           = 16
)

// Notifications configures the consumer of catalog events.
type Notifications struct {
	RabbitMQURL     string
	Queue           string
	ConsumerTag     string
	Prefetch        int
	ShutdownTimeout time.Duration
}

func LoadNotifications() (Notifications, error) {
	cfg := Notifications{
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),
		Queue:       getEnv("NOTIFICATIONS_QUEUE", defaultNotificationsQueue),
		ConsumerTag: getEnv("CONSUMER_TAG", defaultConsumerTag),
	}

	if cfg.RabbitMQURL == "" {
		return Notifications{}, fmt.Errorf("RABBITMQ_URL is required")
	}

	prefetch, err := getPositiveInt("NOTIFICATIONS_PREFETCH", defaultPrefetch)
	if err != nil {
		return Notifications{}, err
	}
	cfg.Prefetch = prefetch

	timeout, err := getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if err != nil {
		return Notifications{}, err
	}
	cfg.ShutdownTimeout = timeout

	return cfg, nil
}

func getPositiveInt(key string, fallback int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}
