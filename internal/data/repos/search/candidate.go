package search

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

// Scope narrows a candidate query. The filter compiler produces
// these from a filter proposal.
type Scope = func(*gorm.DB) *gorm.DB

type CandidateRepo interface {
	// ReplaceForSession swaps the session's candidate set in one
	// transaction; discovery calls it once per run.
	ReplaceForSession(dbc dbctx.Context, sessionID uuid.UUID, candidates []*types.Candidate) error
	ListPage(dbc dbctx.Context, sessionID uuid.UUID, scopes []Scope, page, pageSize int) ([]*types.Candidate, error)
	Count(dbc dbctx.Context, sessionID uuid.UUID, scopes []Scope) (int64, error)
	ListAll(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Candidate, error)
}

type candidateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCandidateRepo(db *gorm.DB, log *logger.Logger) CandidateRepo {
	return &candidateRepo{db: db, log: log.With("repo", "CandidateRepo")}
}

func (r *candidateRepo) ReplaceForSession(dbc dbctx.Context, sessionID uuid.UUID, candidates []*types.Candidate) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&types.Candidate{}).Error; err != nil {
			return fmt.Errorf("clear session candidates: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&candidates, 200).Error; err != nil {
			return fmt.Errorf("insert session candidates: %w", err)
		}
		return nil
	})
}

func (r *candidateRepo) ListPage(dbc dbctx.Context, sessionID uuid.UUID, scopes []Scope, page, pageSize int) ([]*types.Candidate, error) {
	if page < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page=%d pageSize=%d", pkgerrors.ErrInvalidArgument, page, pageSize)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Scopes(scopes...).
		Order("rank ASC").
		Offset(page * pageSize).
		Limit(pageSize)

	var candidates []*types.Candidate
	if err := q.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("list candidate page: %w", err)
	}
	return candidates, nil
}

func (r *candidateRepo) Count(dbc dbctx.Context, sessionID uuid.UUID, scopes []Scope) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	err := txx.WithContext(dbc.Ctx).
		Model(&types.Candidate{}).
		Where("session_id = ?", sessionID).
		Scopes(scopes...).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return n, nil
}

func (r *candidateRepo) ListAll(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Candidate, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var candidates []*types.Candidate
	err := txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("rank ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return candidates, nil
}
