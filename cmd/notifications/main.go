package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/notifications"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "catalog-notifications")

	os.Exit(run(logger))
}

// run drains catalog events until a signal arrives or the broker goes away.
// A closed broker connection is reported as a failure so the supervisor
// restarts the process.
func run(logger *slog.Logger) int {
	cfg, err := config.LoadNotifications()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("connect rabbitmq", "error", err)
		return 1
	}
	defer conn.Close()
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	consumer, err := notifications.NewConsumer(conn, notifications.Options{
		Queue:       cfg.Queue,
		ConsumerTag: cfg.ConsumerTag,
		Prefetch:    cfg.Prefetch,
	}, logger)
	if err != nil {
		logger.Error("init consumer", "error", err, "queue", cfg.Queue)
		return 1
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Listen(ctx)
	}()
	logger.Info("consuming catalog events",
		"queue", cfg.Queue,
		"consumer_tag", cfg.ConsumerTag,
		"prefetch", cfg.Prefetch,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case amqpErr := <-closed:
		if amqpErr != nil {
			logger.Error("rabbitmq connection closed", "error", amqpErr)
			return 1
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("consumer failed", "error", err)
			return 1
		}
		logger.Info("delivery channel closed")
		return 1
	}

	if err := drain(errCh, cfg.ShutdownTimeout); err != nil {
		logger.Error("consumer stop failed", "error", err, "timeout", cfg.ShutdownTimeout)
		return 1
	}

	logger.Info("notifications service stopped")
	return 0
}

var errDrainTimeout = errors.New("consumer did not stop in time")

// drain waits for Listen to return after ctx was cancelled.
func drain(errCh <-chan error, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case err := <-errCh:
		return err
	case <-deadline.C:
		return errDrainTimeout
	}
}
