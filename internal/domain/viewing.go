package domain

import "time"

// ViewingEvent records a single watch of a movie. The table is append-only;
// the trending scorer aggregates over it.
type ViewingEvent struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	UserID         string    `gorm:"type:text;not null;index:idx_viewing_user" json:"user_id"`
	MovieID        string    `gorm:"type:text;not null;index:idx_viewing_movie" json:"movie_id"`
	WatchedSeconds int       `json:"watched_seconds"`
	Completed      bool      `json:"completed"`
	CreatedAt      time.Time `gorm:"index:idx_viewing_created" json:"created_at"`
}

// TableName returns the database table name for ViewingEvent.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ViewingEvent) TableName() string {
	return "viewing_events"
}
