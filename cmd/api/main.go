package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wecure/medstore/internal/auth"
	"github.com/wecure/medstore/internal/cache"
	"github.com/wecure/medstore/internal/cart"
	"github.com/wecure/medstore/internal/catalog"
	"github.com/wecure/medstore/internal/config"
	"github.com/wecure/medstore/internal/messaging"
	"github.com/wecure/medstore/internal/orders"
	"github.com/wecure/medstore/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient := cache.New(cfg.RedisAddr)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, status caching disabled", "error", err)
		redisClient = nil
	}

	var createdProducer, cancelledProducer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		createdProducer = messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCreated)
		defer func() { _ = createdProducer.Close() }()
		cancelledProducer = messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCancelled)
		defer func() { _ = cancelledProducer.Close() }()
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	catalogHandler := catalog.NewHandler(catalog.NewRepository(db), logger)
	cartHandler := cart.NewHandler(cart.NewRepository(db), logger)
	orderHandler := orders.NewHandler(orders.NewRepository(db), createdProducer, cancelledProducer, redisClient, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(15 * time.Second))
	r.Use(telemetry.HTTPRoute)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metricsHandler)

	catalogHandler.Register(r)
	orderHandler.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		cartHandler.Register(r)
		orderHandler.Register(r)
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		logger.Info("starting medstore api", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
