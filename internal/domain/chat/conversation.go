package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Conversation states. A conversation walks idle -> gathering_info ->
// awaiting_confirmation -> applying_filters -> completed for each
// filter-refinement topic; completed reopens on the next utterance.
const (
	StateIdle                 = "idle"
	StateGatheringInfo        = "gathering_info"
	StateAwaitingConfirmation = "awaiting_confirmation"
	StateApplyingFilters      = "applying_filters"
	StateCompleted            = "completed"
)

// Classified intents.
const (
	IntentFilterCandidates  = "filter_candidates"
	IntentDraftEmail        = "draft_email"
	IntentCandidateInfo     = "candidate_info"
	IntentCompareCandidates = "compare_candidates"
	IntentOutOfScope        = "out_of_scope"
)

// MaxClarifications is the cumulative question cap per topic. Once
// reached the engine proposes with whatever it has resolved instead
// of asking again.
const MaxClarifications = 3

type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	SessionID uuid.UUID `gorm:"type:uuid;index;not null" json:"session_id"`

	State  string  `gorm:"type:text;not null;default:'idle'" json:"state"`
	Intent *string `gorm:"type:text" json:"intent,omitempty"`

	ClarificationCount int            `gorm:"not null;default:0" json:"clarification_count"`
	CurrentFilters     datatypes.JSON `gorm:"type:jsonb" json:"current_filters,omitempty"`
	TotalTokensUsed    int            `gorm:"not null;default:0" json:"total_tokens_used"`

	// PendingMessageID references the actionable proposal or
	// clarification message, if any. AppliedMessageID remembers the
	// last proposal that was confirmed and applied so a replayed
	// confirm returns the same result without side effects.
	PendingMessageID *uuid.UUID `gorm:"type:uuid" json:"pending_message_id,omitempty"`
	AppliedMessageID *uuid.UUID `gorm:"type:uuid" json:"applied_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }
