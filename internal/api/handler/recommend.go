package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/natep/cinesearch/internal/logger"
	"github.com/natep/cinesearch/internal/service"
)

// RecommendHandler handles recommendation endpoints.
type RecommendHandler struct {
	recommendService *service.RecommendationService
}

// NewRecommendHandler creates a new recommendation handler.
// Parameters:
//   - recommendService: recommendation service instance.
// Returns:
//   - *RecommendHandler: initialized handler.
func NewRecommendHandler(recommendService *service.RecommendationService) *RecommendHandler {
	return &RecommendHandler{
		recommendService: recommendService,
	}
}

// ForUser handles GET /api/v1/recommendations/:user_id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RecommendHandler) ForUser(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	// Personalized-path logs carry the user id.
	ctx := logger.SetUserID(c.Request.Context(), userID)

	result, err := h.recommendService.ForUser(ctx, userID, intQuery(c, "limit"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Recommendation failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Collaborative handles GET /api/v1/recommendations/:user_id/collaborative.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RecommendHandler) Collaborative(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	ctx := logger.SetUserID(c.Request.Context(), userID)

	result, err := h.recommendService.Collaborative(ctx, userID, intQuery(c, "limit"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Recommendation failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Similar handles GET /api/v1/movies/:id/similar. A missing movie or one
// without an embedding is a 404, distinct from an empty result list.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RecommendHandler) Similar(c *gin.Context) {
	result, err := h.recommendService.Similar(c.Request.Context(), c.Param("id"), intQuery(c, "limit"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Movie not found",
			})
		case errors.Is(err, service.ErrNoEmbedding):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Movie has no embedding",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Recommendation failed: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
