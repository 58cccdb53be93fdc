package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dealhub/dealhub/internal/api"
	"github.com/dealhub/dealhub/internal/config"
	"github.com/dealhub/dealhub/internal/database"
	"github.com/dealhub/dealhub/internal/repository"
	"github.com/dealhub/dealhub/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration from environment variables
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting dealhub service",
		zap.String("environment", cfg.App.Environment))

	// Initialize database connections and apply schema
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connections", zap.Error(err))
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Wire repositories and services
	dealRepo := repository.NewDealRepository(db.Postgres)
	claimRepo := repository.NewClaimRepository(db.Postgres)

	dealSvc := service.NewDealService(dealRepo, logger)
	claimSvc := service.NewClaimService(dealRepo, claimRepo, logger)

	// Background expiry sweep
	sweeper := service.NewSweeper(claimRepo,
		time.Duration(cfg.Claims.SweepInterval)*time.Second, logger)
	go sweeper.Run(ctx)

	router := api.NewRouter(dealSvc, claimSvc, db.Postgres, cfg, logger)

	// Create server with configuration optimized for high concurrency
	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second, // Keep connections alive longer
		MaxHeaderBytes: 1 << 20,           // 1MB
		// Use h2c so we can serve HTTP/2 without TLS
		Handler: h2c.NewHandler(router, &http2.Server{
			MaxConcurrentStreams: 1000,
		}),
	}

	// Start server in goroutine
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Stop the sweeper, then drain in-flight requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.App.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
