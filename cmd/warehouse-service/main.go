package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/wareflow/wareflow-backend/internal/auth/jwt"
	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/handler"
	"github.com/wareflow/wareflow-backend/internal/inventory/service"
	"github.com/wareflow/wareflow-backend/pkg/config"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
)

const serviceName = "warehouse-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(serviceName, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Warehouse Service")

	httputil.ExposeErrorDetails(!config.IsProductionLike())

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	side, err := database.NewSidePool(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open side database pool")
	}
	defer side.Close()

	// Messaging is optional; without it domain events are dropped.
	var (
		broker    *messaging.Broker
		publisher *events.WarehousePublisher
	)
	if cfg.RabbitMQ.Enabled {
		broker, err = messaging.Dial(&cfg.RabbitMQ, log, messaging.ExchangeWarehouseEvents)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer broker.Close()

		publisher, err = events.NewWarehousePublisher(broker, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	} else {
		log.Warn().Msg("RabbitMQ disabled, domain events will not be published")
	}

	services := handler.NewServices(db, side, publisher, service.SettingsFrom(cfg.Inventory), log)
	tokens := jwt.NewManager(&cfg.JWT)

	api := []func(http.Handler) http.Handler{tokens.Middleware(log)}
	if cfg.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()

		limiter := httputil.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
		api = append(api, limiter.Middleware)
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(events.Correlate)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", httputil.SiteHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if broker != nil {
			status["rabbitmq"] = broker.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Mount("/api/v1/warehouse", handler.Routes(db, services, log, api...))

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
