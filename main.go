package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"vidquiz/config"
	"vidquiz/handlers"
	"vidquiz/logger"
	"vidquiz/middleware"
	"vidquiz/routes"
	"vidquiz/services"
)

func main() {
	// Load .env if present; real environment wins.
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Initialize services
	clock := clockwork.NewRealClock()
	registry := services.NewRoomRegistry(clock)
	transcripts := services.NewTranscriptService(cfg.TranscriptAPIURL, cfg.TranscriptTimeout)
	oracle := services.NewOracleService(cfg.OracleAPIURL, cfg.OracleAPIKey, cfg.OracleModel, cfg.OracleTimeout)
	gameService := services.NewGameService(registry, transcripts)

	if !oracle.IsAvailable() {
		logger.S().Warn("ORACLE_API_KEY not set; question generation and grading will fail")
	}

	// Initialize WebSocket hub
	hub := services.NewHub(gameService)
	go hub.Run()

	// Abandoned rooms are removed by the background sweep; there is no
	// explicit end-game action.
	go registry.StartSweeper(context.Background())

	// Initialize handlers
	gameHandler := handlers.NewGameHandler(gameService, transcripts, oracle, hub)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, gameHandler, hub)

	// Start server
	logger.S().Infof("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.BindAddress + ":" + cfg.Port); err != nil {
		logger.S().Fatalf("Failed to start server: %v", err)
	}
}
