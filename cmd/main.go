package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa-backend/internal/ai"
	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
	"docqa-backend/internal/telemetry"
	"docqa-backend/middleware"
	"docqa-backend/routes"
	"docqa-backend/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer("docqa-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	// Gemini client for embeddings and answer generation
	aiClient, err := ai.NewClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}
	defer aiClient.Close()

	// Vector index
	index := services.NewQdrantIndex(services.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	}, metrics)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := index.EnsureCollection(ctx, cfg.EmbeddingDim); err != nil {
			// Requests against the index will keep surfacing the outage.
			logger.Warn("Vector index not reachable at startup", "error", err)
		}
		cancel()
	}

	// Stores
	registry, err := services.NewDocumentRegistry(cfg.DataDir, metrics)
	if err != nil {
		log.Fatal("Failed to init document registry:", err)
	}
	memoryStore, err := services.NewMemoryStore(cfg.DataDir, metrics)
	if err != nil {
		log.Fatal("Failed to init conversation store:", err)
	}

	chunker, err := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}
	extractor := services.NewTextExtractor(cfg.MaxFileSize)

	documentService := services.NewDocumentService(extractor, chunker, aiClient, index, registry)
	qaService := services.NewQAService(aiClient, aiClient, index, memoryStore, cfg.MaxContext)

	// Drop registry entries whose chunks are gone
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := documentService.Reconcile(ctx); err != nil {
			logger.Warn("Startup reconciliation skipped", "error", err)
		}
		cancel()
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))

	// Optional Redis-backed rate limiting
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Rate limiting disabled", "error", err)
	} else if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupDocumentRoutes(router, cfg, documentService)
	routes.SetupQARoutes(router, qaService)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if err := memoryStore.Save(); err != nil {
		logger.Error("Final conversation store save failed", "error", err)
	}

	logger.Info("Server exited")
}
