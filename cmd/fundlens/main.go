package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savegress/fundlens/internal/alerts"
	"github.com/savegress/fundlens/internal/api"
	"github.com/savegress/fundlens/internal/audit"
	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/internal/detect"
	"github.com/savegress/fundlens/internal/graph"
	"github.com/savegress/fundlens/internal/narrative"
	"github.com/savegress/fundlens/internal/risk"
	"github.com/savegress/fundlens/pkg/models"
)

func main() {
	log.Println("Starting FundLens...")

	// Load configuration
	cfg := loadConfig()

	// Initialize the graph store with risk propagation
	store := graph.NewStore(risk.NewPropagator())

	// Initialize analysis engines
	detector := detect.NewDetector(&cfg.Detection)
	analyzer := risk.NewAnalyzer()
	narrativeEngine := narrative.NewEngine()

	// Initialize alerting and audit
	alertEngine := alerts.NewEngine(&cfg.Alerts)
	auditLogger := audit.NewLogger(&cfg.Audit)

	// Start engines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := alertEngine.Start(ctx); err != nil {
		log.Fatalf("Failed to start alert engine: %v", err)
	}

	if err := auditLogger.Start(ctx); err != nil {
		log.Fatalf("Failed to start audit logger: %v", err)
	}

	alertEngine.SetAlertCallback(func(alert *models.Alert) {
		log.Printf("Alert raised: %s [%s] %s", alert.ID, alert.Severity, alert.Title)
	})

	// Create API server
	server := api.NewServer(cfg, store, detector, analyzer, narrativeEngine, alertEngine, auditLogger)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("FundLens API listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down FundLens...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	alertEngine.Stop()
	auditLogger.Stop()

	log.Println("FundLens stopped")
}

func loadConfig() *config.Config {
	configPath := os.Getenv("FUNDLENS_CONFIG")
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Printf("Failed to load config from %s: %v, using defaults", configPath, err)
			return config.LoadFromEnv()
		}
		return cfg
	}
	return config.LoadFromEnv()
}
