package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ricbatera/credentials-fullstack/internal/api/handlers"
	"github.com/ricbatera/credentials-fullstack/internal/api/router"
	"github.com/ricbatera/credentials-fullstack/internal/config"
	"github.com/ricbatera/credentials-fullstack/internal/core/crypto"
	"github.com/ricbatera/credentials-fullstack/internal/core/services"
	"github.com/ricbatera/credentials-fullstack/internal/db/postgres"
)

func main() {
	// --- 1. Core Telemetry & Configuration ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("🚀 Booting Credentials API...")
	cfg := config.Load()

	// --- 2. Outbound Infrastructure ---
	dbPool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("FATAL: DB failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	sqlxDB, err := postgres.NewSqlxDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("FATAL: DB (sqlx) failed", "error", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()

	if err := postgres.RunMigrations(sqlxDB.DB); err != nil {
		logger.Error("FATAL: migrations failed", "error", err)
		os.Exit(1)
	}

	// --- 3. Hardened Dependency Injection ---
	vault, err := crypto.NewVault(cfg.VaultKeyHex)
	if err != nil {
		logger.Error("FATAL: vault key rejected", "error", err)
		os.Exit(1)
	}
	hasher := crypto.NewHasher()
	transfer := crypto.NewTransfer()

	// Repositories
	credentialRepo := postgres.NewCredentialRepo(dbPool)
	consumerKeyRepo := postgres.NewConsumerKeyRepo(sqlxDB)

	// Services
	keyRegistry := services.NewKeyRegistry(consumerKeyRepo, transfer, logger)
	credentialService := services.NewCredentialService(credentialRepo, keyRegistry, vault, hasher, transfer, logger)

	// Handlers
	credentialHandler := handlers.NewCredentialHandler(credentialService, logger)
	consumerKeyHandler := handlers.NewConsumerKeyHandler(keyRegistry, logger)

	// --- 4. HTTP Gateway ---
	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins:     cfg.AllowedOrigins,
		CredentialHandler:  credentialHandler,
		ConsumerKeyHandler: consumerKeyHandler,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// --- 5. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("🌐 Credentials API active", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: Server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ERROR: Forced shutdown", "error", err)
	}
	logger.Info("✅ Credentials API shutdown complete.")
}
