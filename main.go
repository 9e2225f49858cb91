package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/isdelr/msgboard-be/internal/api"
	"github.com/isdelr/msgboard-be/internal/config"
	"github.com/isdelr/msgboard-be/internal/database"
	"github.com/isdelr/msgboard-be/internal/logger"
	"github.com/isdelr/msgboard-be/internal/monitoring"
	"github.com/isdelr/msgboard-be/internal/ratelimit"
	"github.com/isdelr/msgboard-be/internal/services"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ensure the directory holding the database exists
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	// Set up database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply database migrations: %v", err)
	}

	// Set up services
	userService := services.NewUserService(db)
	messageService := services.NewMessageService(db, cfg.Messages.PageLimitMax)

	// Set up rate limiting
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	// Set up and run the background stat updater
	statUpdater := monitoring.NewStatUpdater(time.Minute)
	go statUpdater.Run()

	// Set up and run the maintenance scheduler
	maintenance := monitoring.NewMaintenance(db, limiter)
	maintenance.Start()

	// Set up router
	router := api.NewRouter(cfg, userService, messageService, limiter)

	// Set up server. Stream sessions watch their request context, which
	// derives from baseCtx, so cancelling it ends the long-lived stream
	// connections and lets Shutdown drain.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	statUpdater.Stop()
	maintenance.Stop()
	stopStreams()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
