package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Vector is an optional fixed-length embedding stored as JSON in the database.
// A nil Vector means "no embedding"; it is an explicit variant, not an
// untyped null-check scattered through callers.
type Vector []float64

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded vector, or nil when no embedding exists.
//   - error: non-nil if marshaling fails.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Vector")
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(bytes, v)
}

// Movie represents a catalog title. Records are read-only for the search
// and recommendation paths; mutation happens in the external catalog
// management service.
type Movie struct {
	ID         string      `gorm:"type:text;primaryKey" json:"id"`
	Title      string      `gorm:"type:text;not null;index:idx_movies_title" json:"title"`
	Year       int         `gorm:"index:idx_movies_year" json:"year"`
	Genres     StringArray `gorm:"type:text" json:"genres"`
	Plot       string      `gorm:"type:text" json:"plot"`
	Directors  StringArray `gorm:"type:text" json:"directors"`
	Cast       StringArray `gorm:"column:cast_members;type:text" json:"cast"`
	Countries  StringArray `gorm:"type:text" json:"countries"`
	RuntimeMin int         `json:"runtime_min"`
	Rating     *float64    `gorm:"index:idx_movies_rating" json:"rating,omitempty"`
	Votes      int64       `json:"votes"`
	PosterKey  string      `gorm:"type:text" json:"poster_key,omitempty"`
	Embedding  Vector      `gorm:"type:text" json:"embedding,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Movie.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Movie) TableName() string {
	return "movies"
}

// HasEmbedding reports whether the movie carries an embedding vector.
func (m *Movie) HasEmbedding() bool {
	return len(m.Embedding) > 0
}
