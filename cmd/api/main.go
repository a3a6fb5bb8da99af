package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/natep/cinesearch/internal/api"
	"github.com/natep/cinesearch/internal/api/middleware"
	"github.com/natep/cinesearch/internal/cache"
	"github.com/natep/cinesearch/internal/config"
	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/repository"
	"github.com/natep/cinesearch/internal/service"
	"github.com/natep/cinesearch/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatalf("Failed to initialize database")
	}

	// Initialize repositories
	movieRepo := repository.NewMovieRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	viewingRepo := repository.NewViewingRepository(db)
	trendingRepo := repository.NewTrendingRepository(db)
	userRepo := repository.NewUserRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)

	// Initialize object storage for poster URLs (optional)
	var posterStorage storage.ObjectStorage
	if cfg.Storage.Bucket != "" {
		posterStorage, err = storage.NewStorage(&storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			log.WithError(err).Warnf("Object storage unavailable, poster URLs disabled")
			posterStorage = nil
		}
	}

	// Initialize query result cache
	queryCache := cache.New(map[string]cache.Config{
		cache.NamespaceSearch:       {TTL: cfg.Cache.SearchTTL, Capacity: cfg.Cache.SearchCapacity},
		cache.NamespaceAutocomplete: {TTL: cfg.Cache.AutocompleteTTL, Capacity: cfg.Cache.SearchCapacity},
		cache.NamespaceAnalytics:    {TTL: cfg.Cache.AnalyticsTTL, Capacity: cfg.Cache.SearchCapacity},
	})
	defer queryCache.Close()

	// Initialize query embedder
	embedder := service.NewQueryEmbedder(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
	})

	// Initialize analytics writer
	analytics := service.NewAnalyticsService(queryLogRepo, cfg.Analytics.QueryLogBuffer, log)
	defer analytics.Close()

	// Initialize services
	searchService := service.NewSearchService(movieRepo, embedder, queryCache, analytics, posterStorage, log, service.SearchConfig{
		TextWeight:       cfg.Search.TextWeight,
		VectorWeight:     cfg.Search.VectorWeight,
		MinSimilarity:    cfg.Search.MinSimilarity,
		VectorCandidates: cfg.Search.VectorCandidates,
		FacetCandidates:  cfg.Search.FacetCandidates,
		EmbeddingKind:    cfg.Embedding.Provider,
	})
	recommendService := service.NewRecommendationService(movieRepo, ratingRepo, userRepo, posterStorage, log, service.RecommendConfig{
		NeighborThreshold:  cfg.Recommend.NeighborThreshold,
		NeighborCap:        cfg.Recommend.NeighborCap,
		CandidateCap:       cfg.Recommend.CandidateCap,
		ColdStartMinRating: cfg.Recommend.ColdStartMinRating,
		ColdStartMinVotes:  cfg.Recommend.ColdStartMinVotes,
	})
	trendingService := service.NewTrendingService(movieRepo, viewingRepo, trendingRepo, posterStorage, log, service.TrendingConfig{
		Multiplier: cfg.Trending.Multiplier,
		WindowDays: cfg.Trending.WindowDays,
		MinRefresh: cfg.Trending.MinRefresh,
	})

	// Setup router
	router := api.SetupRouter(api.RouterDeps{
		DB:               db,
		SearchService:    searchService,
		RecommendService: recommendService,
		TrendingService:  trendingService,
		Movies:           movieRepo,
		Ratings:          ratingRepo,
		Logger:           log,
		Mode:             cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalf("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Errorf("Server forced to shutdown")
	}

	log.Infof("Server exited")
}
