package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/debugferro/identity-be/internal/api"
	"github.com/debugferro/identity-be/internal/auth"
	"github.com/debugferro/identity-be/internal/config"
	"github.com/debugferro/identity-be/internal/database"
	"github.com/debugferro/identity-be/internal/logger"
	"github.com/debugferro/identity-be/internal/monitoring"
	"github.com/debugferro/identity-be/internal/services"
	"github.com/debugferro/identity-be/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, eventService)
	authManager := auth.NewManager(cfg.JWTSecret)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(hub, eventService, cfg.StatsInterval)
	go statUpdater.Run()

	// Set up and run the background maintenance scheduler
	scheduler, err := monitoring.NewScheduler(eventService, cfg.RetentionCron, cfg.EventRetention)
	if err != nil {
		log.Fatal().Err(err).Str("cron", cfg.RetentionCron).Msg("Invalid retention cron expression")
	}
	go scheduler.Run()

	// Set up router
	router := api.NewRouter(hub, authManager, userService, eventService, statUpdater, cfg.AllowedOrigin)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop() // Stop the monitoring service
	scheduler.Stop()   // Stop the scheduler

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
