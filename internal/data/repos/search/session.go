package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, session *types.SearchSession) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SearchSession, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error
	// Delete removes the session together with its candidates,
	// conversations and messages.
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *types.SearchSession) error {
	if session == nil {
		return fmt.Errorf("%w: nil session", pkgerrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create search session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SearchSession, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var session types.SearchSession
	err := txx.WithContext(dbc.Ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("search session %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get search session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.SearchSession{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update search session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("search session %s: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}

func (r *sessionRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`DELETE FROM chat_messages WHERE conversation_id IN
			 (SELECT id FROM conversations WHERE session_id = ?)`, id,
		).Error; err != nil {
			return fmt.Errorf("delete session messages: %w", err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&types.Conversation{}).Error; err != nil {
			return fmt.Errorf("delete session conversations: %w", err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&types.Candidate{}).Error; err != nil {
			return fmt.Errorf("delete session candidates: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&types.SearchSession{})
		if res.Error != nil {
			return fmt.Errorf("delete session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("search session %s: %w", id, pkgerrors.ErrNotFound)
		}
		return nil
	})
}

func (r *sessionRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var expired []types.SearchSession
	err := txx.WithContext(dbc.Ctx).
		Select("id").
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}
	for _, s := range expired {
		if err := r.Delete(dbc, s.ID); err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			return 0, err
		}
	}
	return int64(len(expired)), nil
}
