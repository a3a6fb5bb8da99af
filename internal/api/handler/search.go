package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/natep/cinesearch/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// TextSearch handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) TextSearch(c *gin.Context) {
	var req service.TextSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.searchService.TextSearch(c.Request.Context(), &req)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// TextSearchGet handles GET /api/v1/search for simple search queries.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) TextSearchGet(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	req := service.TextSearchRequest{
		Query:  query,
		SortBy: c.Query("sort_by"),
		UserID: c.Query("user_id"),
		Page:   intQuery(c, "page"),
		Limit:  intQuery(c, "limit"),
	}

	result, err := h.searchService.TextSearch(c.Request.Context(), &req)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// VectorSearch handles POST /api/v1/search/vector.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) VectorSearch(c *gin.Context) {
	var req service.VectorSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.searchService.VectorSearch(c.Request.Context(), &req)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HybridSearch handles POST /api/v1/search/hybrid.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	var req service.HybridSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.searchService.HybridSearch(c.Request.Context(), &req)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// FacetedSearch handles POST /api/v1/search/faceted.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) FacetedSearch(c *gin.Context) {
	var req service.FacetedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.searchService.FacetedSearch(c.Request.Context(), &req)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Suggest handles GET /api/v1/search/suggest for type-ahead titles.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Suggest(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	result, err := h.searchService.Suggest(c.Request.Context(), query, intQuery(c, "limit"))
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondSearchError maps service errors to HTTP status codes.
func respondSearchError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrEmptyQuery) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Search failed: " + err.Error(),
	})
}

// intQuery parses an optional integer query parameter; malformed or missing
// values fall back to zero so the service applies its defaults.
func intQuery(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
