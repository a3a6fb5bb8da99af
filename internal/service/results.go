package service

import (
	"github.com/natep/cinesearch/internal/domain"
	"github.com/natep/cinesearch/internal/storage"
)

// MovieResult is the API-facing projection of a catalog title shared by the
// search and recommendation responses.
type MovieResult struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Plot       string   `json:"plot,omitempty"`
	Directors  []string `json:"directors,omitempty"`
	Cast       []string `json:"cast,omitempty"`
	Countries  []string `json:"countries,omitempty"`
	RuntimeMin int      `json:"runtime_min,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	Votes      int64    `json:"votes,omitempty"`
	PosterURL  string   `json:"poster_url,omitempty"`
}

// newMovieResult converts a domain movie into its API projection. Poster
// URL resolution is best-effort; a missing storage client or poster key
// just leaves the field empty.
func newMovieResult(m *domain.Movie, store storage.ObjectStorage) MovieResult {
	result := MovieResult{
		ID:         m.ID,
		Title:      m.Title,
		Year:       m.Year,
		Genres:     m.Genres,
		Plot:       m.Plot,
		Directors:  m.Directors,
		Cast:       m.Cast,
		Countries:  m.Countries,
		RuntimeMin: m.RuntimeMin,
		Rating:     m.Rating,
		Votes:      m.Votes,
	}
	if m.PosterKey != "" && store != nil {
		result.PosterURL = store.GetURL(m.PosterKey)
	}
	return result
}
