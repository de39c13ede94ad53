package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chanrelay/chanrelay/internal/platform/config"
	"github.com/chanrelay/chanrelay/internal/platform/database"
	"github.com/chanrelay/chanrelay/internal/platform/logger"
	"github.com/chanrelay/chanrelay/internal/platform/messagebroker"
	"github.com/chanrelay/chanrelay/internal/relay_service/adapters/broker"
	"github.com/chanrelay/chanrelay/internal/relay_service/adapters/gateway"
	httptransport "github.com/chanrelay/chanrelay/internal/relay_service/adapters/http"
	"github.com/chanrelay/chanrelay/internal/relay_service/adapters/ws"
	"github.com/chanrelay/chanrelay/internal/relay_service/app"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
	"github.com/chanrelay/chanrelay/internal/relay_service/repository/postgres"
)

const serviceName = "relay_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Relay service starting...",
		"port", cfg.ServerPort, "watched_channel", cfg.WatchedChannel)

	if cfg.WatchedChannel == "" {
		appLogger.Error("WATCHED_CHANNEL must be configured")
		os.Exit(1)
	}

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	messageRepo := postgres.NewPgMessageRepository(dbPool)
	wahaClient := gateway.NewWAHAClient(appLogger,
		cfg.WAHABaseURL, cfg.WAHAAPIKey, cfg.WAHASession, cfg.WatchedChannel, nil)
	hub := ws.NewHub(appLogger)

	notifiers := app.MultiNotifier{hub}
	if cfg.NATSUrl != "" {
		natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
		if err != nil {
			appLogger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		notifiers = append(notifiers, broker.NewRelay(natsClient, appLogger))
		appLogger.Info("NATS event relay enabled", "url", cfg.NATSUrl)
	}

	var _ domain.Notifier = notifiers

	reconciler := app.NewReconciler(messageRepo, notifiers, wahaClient,
		cfg.WatchedChannel, cfg.RecentLimit, appLogger)

	validate := validator.New()
	webhookHandler := httptransport.NewWebhookHandler(reconciler, appLogger)
	messageHandler := httptransport.NewMessageHandler(reconciler, appLogger, validate)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "database unreachable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/waha/webhook", webhookHandler.HandleWebhook)
	r.Route("/api/messages", func(msgRouter chi.Router) {
		messageHandler.RegisterRoutes(msgRouter)
	})
	r.Get("/ws", hub.HandleWS)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ServerPort), Handler: r}
	appLogger.Info(fmt.Sprintf("Relay server listening on port %d", cfg.ServerPort))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, shutting down HTTP server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	hub.Shutdown()
	appLogger.Info("Relay service stopped")
}
