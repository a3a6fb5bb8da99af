package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/natep/cinesearch/internal/service"
)

// TrendingHandler handles trending and viewing endpoints.
type TrendingHandler struct {
	trendingService *service.TrendingService
}

// NewTrendingHandler creates a new trending handler.
// Parameters:
//   - trendingService: trending service instance.
// Returns:
//   - *TrendingHandler: initialized handler.
func NewTrendingHandler(trendingService *service.TrendingService) *TrendingHandler {
	return &TrendingHandler{
		trendingService: trendingService,
	}
}

// GetTrending handles GET /api/v1/trending.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrendingHandler) GetTrending(c *gin.Context) {
	result, err := h.trendingService.GetTrending(c.Request.Context(), intQuery(c, "limit"), intQuery(c, "days_back"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get trending movies: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ViewRequest represents a viewing event report.
type ViewRequest struct {
	UserID         string `json:"user_id"`
	MovieID        string `json:"movie_id" binding:"required"`
	WatchedSeconds int    `json:"watched_seconds"`
	Completed      bool   `json:"completed"`
}

// RecordView handles POST /api/v1/viewings.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrendingHandler) RecordView(c *gin.Context) {
	var req ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if err := h.trendingService.RecordView(c.Request.Context(), req.UserID, req.MovieID, req.WatchedSeconds, req.Completed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record view: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "view recorded",
	})
}

// Recompute handles POST /api/v1/admin/trending/recompute. It bypasses the
// lazy refresh throttle and rebuilds all scores immediately.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrendingHandler) Recompute(c *gin.Context) {
	if err := h.trendingService.Recompute(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Recompute failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "trending scores recomputed",
	})
}
