package domain

import "time"

// Search type labels written to the query log.
const (
	SearchTypeText    = "text"
	SearchTypeVector  = "vector"
	SearchTypeHybrid  = "hybrid"
	SearchTypeFaceted = "faceted"
	SearchTypeSuggest = "suggest"
)

// QueryLog is a write-only audit record of a search request. Nothing on the
// ranking path reads it back.
type QueryLog struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	UserID      string    `gorm:"type:text;index:idx_query_logs_user" json:"user_id,omitempty"`
	Query       string    `gorm:"type:text" json:"query"`
	SearchType  string    `gorm:"type:text" json:"search_type"`
	Filters     string    `gorm:"type:text" json:"filters,omitempty"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for QueryLog.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (QueryLog) TableName() string {
	return "query_logs"
}
