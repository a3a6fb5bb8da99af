package domain

import "time"

// TrendingScore holds the derived popularity score for a movie. One row per
// movie, upserted by the trending recompute; never user-owned.
type TrendingScore struct {
	MovieID     string    `gorm:"type:text;primaryKey" json:"movie_id"`
	ViewCount   int64     `json:"view_count"`
	WeeklyViews int64     `json:"weekly_views"`
	Score       float64   `gorm:"index:idx_trending_score" json:"score"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for TrendingScore.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (TrendingScore) TableName() string {
	return "trending_scores"
}
