package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type MessageRepo interface {
	// Append assigns sequence numbers after the conversation's
	// current max and inserts the batch in order.
	Append(dbc dbctx.Context, msgs []*types.ChatMessage) ([]*types.ChatMessage, error)
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.ChatMessage, error)
	GetByID(dbc dbctx.Context, conversationID, messageID uuid.UUID) (*types.ChatMessage, error)
	ListByIdempotencyKey(dbc dbctx.Context, conversationID uuid.UUID, key string) ([]*types.ChatMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Append(dbc dbctx.Context, msgs []*types.ChatMessage) ([]*types.ChatMessage, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	conversationID := msgs[0].ConversationID
	for _, m := range msgs {
		if m.ConversationID != conversationID {
			return nil, fmt.Errorf("%w: batch spans conversations", pkgerrors.ErrInvalidArgument)
		}
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	var maxSeq int64
	err := txx.WithContext(dbc.Ctx).
		Model(&types.ChatMessage{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return nil, fmt.Errorf("get max seq: %w", err)
	}

	for i, m := range msgs {
		m.Seq = maxSeq + int64(i) + 1
	}
	if err := txx.WithContext(dbc.Ctx).Create(&msgs).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("concurrent append to conversation %s: %w", conversationID, pkgerrors.ErrStaleReference)
		}
		return nil, fmt.Errorf("append messages: %w", err)
	}
	return msgs, nil
}

// isUniqueViolation reports a 23505 on the (conversation_id, seq)
// index, meaning another turn appended between the max-seq read and
// this insert.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *messageRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.ChatMessage, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var msgs []*types.ChatMessage
	err := txx.WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, conversationID, messageID uuid.UUID) (*types.ChatMessage, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var msg types.ChatMessage
	err := txx.WithContext(dbc.Ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %s: %w", messageID, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepo) ListByIdempotencyKey(dbc dbctx.Context, conversationID uuid.UUID, key string) ([]*types.ChatMessage, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var msgs []*types.ChatMessage
	err := txx.WithContext(dbc.Ctx).
		Where("conversation_id = ? AND idempotency_key = ?", conversationID, key).
		Order("seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages by idempotency key: %w", err)
	}
	return msgs, nil
}
