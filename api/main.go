package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/local/studyhub/api/config"
	"github.com/local/studyhub/api/db"
	"github.com/local/studyhub/api/handlers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	database, err := db.Init(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	log.Info().Str("db_path", cfg.DBPath).Msg("Database initialized")

	// Create Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Initialize handlers
	h := handlers.New(database, cfg)

	// Health check
	router.GET("/api/health", h.Health)

	// API routes
	api := router.Group("/api")
	{
		api.GET("/courses", h.ListCourses)
		api.POST("/courses/search", h.SearchCourses)
		api.GET("/courses/:docId", h.GetCourseDetail)
		api.POST("/courses/reindex", h.Reindex)
		api.POST("/ask", h.Ask)
		api.GET("/quiz/:docId", h.GenerateQuiz)
		api.POST("/quiz/answer", h.AnswerQuiz)
		api.POST("/progress", h.RecordProgress)
		api.POST("/sync/control", h.AudioControl)
		api.GET("/stats/library", h.LibraryStats)
		api.GET("/stats/session/:sessionId", h.SessionStats)
		api.GET("/events/:sessionId", h.Events)
	}

	// Mobile session routes
	mobile := router.Group("/mobile")
	{
		mobile.POST("/create-session", h.CreateSession)
		mobile.POST("/sync-position", h.SyncPosition)
		mobile.GET("/session/:sessionId", h.GetSessionState)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().
		Str("port", cfg.Port).
		Str("model_provider", cfg.ModelProvider).
		Str("materials_path", cfg.MaterialsPath).
		Msg("Starting course assistant API server")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
