package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/natep/cinesearch/internal/domain"
)

// MovieReader loads single catalog titles.
type MovieReader interface {
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
}

// RatingWriter persists rating edges.
type RatingWriter interface {
	Upsert(ctx context.Context, rating *domain.Rating) error
}

// MovieHandler handles catalog detail and rating endpoints.
type MovieHandler struct {
	movies  MovieReader
	ratings RatingWriter
}

// NewMovieHandler creates a new movie handler.
// Parameters:
//   - movies: catalog reader.
//   - ratings: rating writer.
// Returns:
//   - *MovieHandler: initialized handler.
func NewMovieHandler(movies MovieReader, ratings RatingWriter) *MovieHandler {
	return &MovieHandler{
		movies:  movies,
		ratings: ratings,
	}
}

// GetMovie handles GET /api/v1/movies/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) GetMovie(c *gin.Context) {
	movie, err := h.movies.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Movie not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get movie: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, movie)
}

// RateRequest represents a rating submission.
type RateRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	MovieID string `json:"movie_id" binding:"required"`
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
}

// RateMovie handles POST /api/v1/ratings. Re-rating a title overwrites the
// previous value.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) RateMovie(c *gin.Context) {
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	rating := &domain.Rating{
		UserID:  req.UserID,
		MovieID: req.MovieID,
		Rating:  req.Rating,
	}
	if err := h.ratings.Upsert(c.Request.Context(), rating); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save rating: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "rating saved",
		"rating":  rating,
	})
}
