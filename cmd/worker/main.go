package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wecure/medstore/internal/config"
	"github.com/wecure/medstore/internal/messaging"
	"github.com/wecure/medstore/internal/orders"
	"github.com/wecure/medstore/internal/telemetry"
	"github.com/wecure/medstore/internal/worker"
)

const serviceVersion = "0.1.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "medstore-worker", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}

	notifier := worker.NewNotifier(cfg.EmailServiceURL, orders.NewRepository(db), httpClient, logger)

	createdConsumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderCreated, messaging.GroupNotifier)
	defer func() { _ = createdConsumer.Close() }()
	cancelledConsumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderCancelled, messaging.GroupNotifier)
	defer func() { _ = cancelledConsumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers)

	errCh := make(chan error, 2)
	go func() { errCh <- createdConsumer.Consume(ctx, notifier.HandleOrderCreated) }()
	go func() { errCh <- cancelledConsumer.Consume(ctx, notifier.HandleOrderCancelled) }()

	if err := <-errCh; err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
