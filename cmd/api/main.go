package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ecommkit/storefront/internal/cart"
	"github.com/ecommkit/storefront/internal/catalog"
	"github.com/ecommkit/storefront/internal/coupon"
	"github.com/ecommkit/storefront/internal/messaging"
	"github.com/ecommkit/storefront/internal/orders"
	"github.com/ecommkit/storefront/internal/payment"
	"github.com/ecommkit/storefront/internal/reconcile"
	"github.com/ecommkit/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := telemetry.StartRuntimeMetrics(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		logger.Error("WEBHOOK_SECRET environment variable is required")
		os.Exit(1)
	}

	providerURL := os.Getenv("PAYMENT_PROVIDER_URL")
	if providerURL == "" {
		logger.Error("PAYMENT_PROVIDER_URL environment variable is required")
		os.Exit(1)
	}

	currency := os.Getenv("CURRENCY")
	if currency == "" {
		currency = "usd"
	}

	// Cash orders are placed immediately unless the operator opts out
	// and wires a separate fulfillment signal.
	cashAutoPlace := os.Getenv("CASH_AUTO_PLACE") != "false"

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

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, "payment.completed")
		defer func() { _ = producer.Close() }()
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	couponRepo := coupon.NewCouponRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	failureRepo := reconcile.NewFailureRepository(db)

	reconciler := reconcile.NewReconciler(orderRepo, cartRepo, productRepo, failureRepo, logger)
	gateway := payment.NewProviderClient(providerURL, currency, httpClient)

	catalogHandler := catalog.NewHandler(productRepo, logger)
	cartHandler := cart.NewHandler(cartRepo, productRepo, logger)
	couponHandler := coupon.NewHandler(couponRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, cartRepo, productRepo, couponRepo, gateway, reconciler, cashAutoPlace, logger)

	// With no broker configured, completion events are reconciled
	// inline in the webhook request.
	var publisher payment.Publisher
	if producer != nil {
		publisher = producer
	}
	webhookHandler := payment.NewWebhookHandler([]byte(webhookSecret), publisher, reconciler, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart", telemetry.WithHTTPRoute(cartHandler.HandleUpsertLine))
	mux.HandleFunc("POST /coupons", telemetry.WithHTTPRoute(couponHandler.HandleCreate))
	mux.HandleFunc("GET /coupons/{code}", telemetry.WithHTTPRoute(couponHandler.HandleGet))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("GET /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleGetStatus))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(orderHandler.HandleCancel))
	mux.HandleFunc("POST /payments/webhook", telemetry.WithHTTPRoute(webhookHandler.HandleWebhook))
	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "storefront-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting storefront api", "port", port, "cash_auto_place", cashAutoPlace)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
