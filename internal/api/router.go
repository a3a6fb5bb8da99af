package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/natep/cinesearch/internal/api/handler"
	"github.com/natep/cinesearch/internal/api/middleware"
	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/service"
)

// RouterDeps bundles everything the router wires into handlers.
type RouterDeps struct {
	DB               *gorm.DB
	SearchService    *service.SearchService
	RecommendService *service.RecommendationService
	TrendingService  *service.TrendingService
	Movies           handler.MovieReader
	Ratings          handler.RatingWriter
	Logger           *logger.Logger
	Mode             string
	CORS             middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps) *gin.Engine {
	// Set Gin mode
	switch deps.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.DB)
	searchHandler := handler.NewSearchHandler(deps.SearchService)
	recommendHandler := handler.NewRecommendHandler(deps.RecommendService)
	trendingHandler := handler.NewTrendingHandler(deps.TrendingService)
	movieHandler := handler.NewMovieHandler(deps.Movies, deps.Ratings)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Search
		v1.POST("/search", searchHandler.TextSearch)
		v1.GET("/search", searchHandler.TextSearchGet)
		v1.POST("/search/vector", searchHandler.VectorSearch)
		v1.POST("/search/hybrid", searchHandler.HybridSearch)
		v1.POST("/search/faceted", searchHandler.FacetedSearch)
		v1.GET("/search/suggest", searchHandler.Suggest)

		// Recommendations
		v1.GET("/recommendations/:user_id", recommendHandler.ForUser)
		v1.GET("/recommendations/:user_id/collaborative", recommendHandler.Collaborative)

		// Trending and viewing events
		v1.GET("/trending", trendingHandler.GetTrending)
		v1.POST("/viewings", trendingHandler.RecordView)

		// Catalog and ratings
		v1.GET("/movies/:id", movieHandler.GetMovie)
		v1.GET("/movies/:id/similar", recommendHandler.Similar)
		v1.POST("/ratings", movieHandler.RateMovie)

		// Admin
		v1.POST("/admin/trending/recompute", trendingHandler.Recompute)
	}

	return r
}
