package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fithero/planner/internal/api"
	"fithero/planner/internal/app"
	"fithero/planner/internal/config"
	"fithero/planner/internal/logger"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// @title FitHero Planner API
// @version 1.0
// @description Monthly AI plans, daily slices and achievements for FitHero players.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting FitHero planner server", "address", cfg.Server.Address, "database", cfg.Database.Driver)

	if cfg.JWT.Secret == "" {
		log.Fatal("jwt.secret must be set")
	}

	// --- Dependencies ---
	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Failed to close connections", "error", err)
		}
	}()

	// --- Initialize Gin Engine ---
	if cfg.Log.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))
	api.SetupRoutes(router, cfg.JWT.Secret, a.Plans, a.Daily, a.Achievements, a.Renewal)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	log.Info("Server exiting")
}
