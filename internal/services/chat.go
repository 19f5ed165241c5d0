package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/gitscout/gitscout-backend/internal/data/repos/chat"
	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/domain/chat"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type ConversationWithHistory struct {
	Conversation *types.Conversation  `json:"conversation"`
	Messages     []*types.ChatMessage `json:"messages"`
}

// ConversationService is the durable conversation store: lookup,
// creation and consistent history snapshots. Turn processing lives
// in AgentService.
type ConversationService interface {
	GetOrCreate(dbc dbctx.Context, userID, sessionID uuid.UUID) (*types.Conversation, error)
	GetByID(dbc dbctx.Context, userID, conversationID uuid.UUID) (*ConversationWithHistory, error)
	GetBySession(dbc dbctx.Context, userID, sessionID uuid.UUID) (*ConversationWithHistory, error)
}

type conversationService struct {
	db    *gorm.DB
	log   *logger.Logger
	convs chatrepo.ConversationRepo
	msgs  chatrepo.MessageRepo
}

func NewConversationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	convs chatrepo.ConversationRepo,
	msgs chatrepo.MessageRepo,
) ConversationService {
	return &conversationService{
		db:    db,
		log:   baseLog.With("service", "ConversationService"),
		convs: convs,
		msgs:  msgs,
	}
}

func (s *conversationService) GetOrCreate(dbc dbctx.Context, userID, sessionID uuid.UUID) (*types.Conversation, error) {
	conv, err := s.convs.GetLatestBySession(dbc, sessionID)
	if err == nil {
		if conv.UserID != userID {
			return nil, fmt.Errorf("conversation owner mismatch: %w", pkgerrors.ErrUnauthorized)
		}
		return conv, nil
	}
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}

	conv = &types.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		State:     chat.StateIdle,
	}
	if err := s.convs.Create(dbc, conv); err != nil {
		return nil, err
	}
	s.log.Info("conversation created", "conversation_id", conv.ID, "session_id", sessionID)
	return conv, nil
}

func (s *conversationService) GetByID(dbc dbctx.Context, userID, conversationID uuid.UUID) (*ConversationWithHistory, error) {
	conv, err := s.convs.GetByID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation owner mismatch: %w", pkgerrors.ErrUnauthorized)
	}
	msgs, err := s.msgs.ListByConversation(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	return &ConversationWithHistory{Conversation: conv, Messages: msgs}, nil
}

func (s *conversationService) GetBySession(dbc dbctx.Context, userID, sessionID uuid.UUID) (*ConversationWithHistory, error) {
	conv, err := s.convs.GetLatestBySession(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation owner mismatch: %w", pkgerrors.ErrUnauthorized)
	}
	msgs, err := s.msgs.ListByConversation(dbc, conv.ID)
	if err != nil {
		return nil, err
	}
	return &ConversationWithHistory{Conversation: conv, Messages: msgs}, nil
}
