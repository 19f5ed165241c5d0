package search

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Search session statuses.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

const DefaultPageSize = 10

// SearchSession is one job-description search and the pagination
// state over its candidate set. Pages are 0-indexed; CurrentPage
// resets to 0 whenever AppliedFilters changes.
type SearchSession struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`

	JobDescription string `gorm:"type:text;not null" json:"job_description"`
	Status         string `gorm:"type:text;not null;default:'running'" json:"status"`

	TotalFound  int `gorm:"not null;default:0" json:"total_found"`
	PageSize    int `gorm:"not null;default:10" json:"page_size"`
	CurrentPage int `gorm:"not null;default:0" json:"current_page"`

	AppliedFilters datatypes.JSON `gorm:"type:jsonb" json:"applied_filters,omitempty"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (SearchSession) TableName() string { return "search_sessions" }

func (s *SearchSession) HasMore() bool {
	if s.PageSize <= 0 {
		return false
	}
	return (s.CurrentPage+1)*s.PageSize < s.TotalFound
}
