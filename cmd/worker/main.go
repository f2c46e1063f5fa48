package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/ecommkit/storefront/internal/cart"
	"github.com/ecommkit/storefront/internal/catalog"
	"github.com/ecommkit/storefront/internal/messaging"
	"github.com/ecommkit/storefront/internal/orders"
	"github.com/ecommkit/storefront/internal/reconcile"
	"github.com/ecommkit/storefront/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	brokers := strings.Split(kafkaBrokers, ",")
	consumer := messaging.NewConsumer(brokers, "payment.completed", "reconciliation-worker")
	defer func() { _ = consumer.Close() }()

	orderRepo := orders.NewOrderRepository(db)
	cartRepo := cart.NewCartRepository(db)
	productRepo := catalog.NewProductRepository(db)
	failureRepo := reconcile.NewFailureRepository(db)

	reconciler := reconcile.NewReconciler(orderRepo, cartRepo, productRepo, failureRepo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting reconciliation worker", "brokers", brokers)

	if err := consumer.Consume(ctx, reconciler.HandleMessage); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
