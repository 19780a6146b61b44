package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pushreg-backend/config"
	"pushreg-backend/internal/api"
	"pushreg-backend/internal/db"
	"pushreg-backend/internal/notification"
	"pushreg-backend/internal/registry"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	logger := log.New(os.Stdout, "pushregd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.NewGormRegistry(gormDB)
	logger.Println("registration registry initialized")

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, reg, &webpushOptions)
	pool.Start(ctx)

	if cfg.GC.Enabled {
		go runAbandonedReaper(ctx, gormDB, reg, cfg, logger)
	}

	router := api.NewRouter(reg, &webpushOptions, pool, rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// runAbandonedReaper periodically removes registrations that were marked
// for deletion but whose owning device never came back to reap them
// (uninstalled app, abandoned browser profile).
func runAbandonedReaper(ctx context.Context, gormDB *gorm.DB, reg registry.Registry, cfg *config.Config, logger *log.Logger) {
	ticker := time.NewTicker(cfg.GC.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-cfg.GC.Grace)
			reaped, err := registry.ReapAbandoned(ctx, gormDB, reg, cutoff)
			if err != nil {
				logger.Printf("abandoned registration reap failed: %v", err)
				continue
			}
			if reaped > 0 {
				logger.Printf("reaped %d abandoned registrations", reaped)
			}
		}
	}
}
