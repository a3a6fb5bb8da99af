package domain

import "time"

// Rating bounds. Ratings are integers; anything outside [RatingMin, RatingMax]
// is rejected before persistence.
const (
	RatingMin = 1
	RatingMax = 5

	// LikedRatingThreshold marks the rating at which a title counts as
	// "liked" for recommendation purposes.
	LikedRatingThreshold = 4
)

// Rating represents a user's rating of a movie. One row per (user, movie);
// a re-rate overwrites the previous value.
type Rating struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index:idx_ratings_user_movie,unique;index:idx_ratings_user" json:"user_id"`
	MovieID   string    `gorm:"type:text;not null;index:idx_ratings_user_movie,unique;index:idx_ratings_movie" json:"movie_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Rating.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Rating) TableName() string {
	return "ratings"
}

// Liked reports whether this rating counts as a positive signal.
func (r *Rating) Liked() bool {
	return r.Rating >= LikedRatingThreshold
}
