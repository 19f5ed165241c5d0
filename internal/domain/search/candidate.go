package search

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Candidate is one ranked profile within a session. (SessionID,
// Login) is unique; discovery dedups on login before insert.
type Candidate struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_candidates_session_login,priority:1" json:"session_id"`
	Login     string    `gorm:"type:text;not null;uniqueIndex:uq_candidates_session_login,priority:2" json:"login"`

	Name      string  `gorm:"type:text" json:"name,omitempty"`
	URL       string  `gorm:"type:text" json:"url"`
	AvatarURL string  `gorm:"type:text" json:"avatar_url,omitempty"`
	Score     float64 `gorm:"not null;default:0" json:"score"`
	Rank      int     `gorm:"not null;default:0;index" json:"rank"`

	MatchReason string `gorm:"type:text" json:"match_reason,omitempty"`

	Email           string `gorm:"type:text" json:"email,omitempty"`
	TwitterUsername string `gorm:"type:text" json:"twitter_username,omitempty"`
	WebsiteURL      string `gorm:"type:text" json:"website_url,omitempty"`
	Location        string `gorm:"type:text" json:"location,omitempty"`
	Followers       int    `gorm:"not null;default:0" json:"followers"`

	LastContributionAt *time.Time     `json:"last_contribution_at,omitempty"`
	TopRepos           datatypes.JSON `gorm:"type:jsonb" json:"top_repos,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Candidate) TableName() string { return "candidates" }

// RepoSummary is the serialized element shape of Candidate.TopRepos.
type RepoSummary struct {
	NameWithOwner string   `json:"name_with_owner"`
	URL           string   `json:"url"`
	Description   string   `json:"description,omitempty"`
	Stars         int      `json:"stars"`
	Languages     []string `json:"languages,omitempty"`
	Topics        []string `json:"topics,omitempty"`
}
