package domain

import "time"

// User carries the slice of profile data the recommendation core needs.
// Account management lives in the external auth service; this core only
// reads the preferred-genre list for cold-start filtering.
type User struct {
	ID              string      `gorm:"type:text;primaryKey" json:"id"`
	PreferredGenres StringArray `gorm:"type:text" json:"preferred_genres"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName returns the database table name for User.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (User) TableName() string {
	return "users"
}
