package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, conv *types.Conversation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	GetLatestBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.Conversation, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, conv *types.Conversation) error {
	if conv == nil {
		return fmt.Errorf("%w: nil conversation", pkgerrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var conv types.Conversation
	err := txx.WithContext(dbc.Ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepo) GetLatestBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.Conversation, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var conv types.Conversation
	err := txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation for session %s: %w", sessionID, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}
