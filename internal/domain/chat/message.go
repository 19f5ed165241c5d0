package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message types. Each names exactly one content variant.
const (
	TypeText               = "text"
	TypeFilterProposal     = "filter_proposal"
	TypeClarification      = "clarification"
	TypeMultiClarification = "multi_clarification"
	TypeEmailDraft         = "email_draft"
	TypeStep               = "step"
)

// ChatMessage is append-only: rows are written once and never
// mutated. Seq is assigned within the conversation at append time
// and defines display order.
type ChatMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_chat_messages_conv_seq,priority:1" json:"conversation_id"`
	Seq            int64     `gorm:"not null;uniqueIndex:uq_chat_messages_conv_seq,priority:2" json:"seq"`

	Role string `gorm:"type:text;not null" json:"role"`
	Type string `gorm:"type:text;not null" json:"type"`

	Content    datatypes.JSON `gorm:"type:jsonb;not null" json:"content"`
	TokensUsed int            `gorm:"not null;default:0" json:"tokens_used"`

	IdempotencyKey *string `gorm:"type:text;index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// NewMessage validates that content populates exactly the variant
// named by typ before serializing it. Invalid combinations never
// reach the store.
func NewMessage(conversationID uuid.UUID, role, typ string, content Content) (*ChatMessage, error) {
	if err := content.Validate(typ); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal message content: %w", err)
	}
	return &ChatMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Type:           typ,
		Content:        datatypes.JSON(raw),
		TokensUsed:     EstimateTokens(string(raw)),
	}, nil
}

func NewTextMessage(conversationID uuid.UUID, role, text string) (*ChatMessage, error) {
	return NewMessage(conversationID, role, TypeText, Content{Text: &TextContent{Text: text}})
}

// DecodeContent unmarshals the stored variant back into struct form.
// The stored payload already passed Validate at construction.
func (m *ChatMessage) DecodeContent() (Content, error) {
	var c Content
	if err := json.Unmarshal(m.Content, &c); err != nil {
		return Content{}, fmt.Errorf("decode message content: %w", err)
	}
	return c, nil
}

// EstimateTokens approximates token usage at four characters per
// token, matching the accounting used across the pipeline.
func EstimateTokens(text string) int {
	return len(text) / 4
}
