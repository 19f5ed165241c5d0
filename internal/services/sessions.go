package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	searchrepo "github.com/gitscout/gitscout-backend/internal/data/repos/search"
	types "github.com/gitscout/gitscout-backend/internal/domain"
	searchdomain "github.com/gitscout/gitscout-backend/internal/domain/search"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/kmutex"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type PageResult struct {
	SessionID   uuid.UUID          `json:"session_id"`
	Candidates  []*types.Candidate `json:"candidates"`
	TotalFound  int                `json:"total_found"`
	CurrentPage int                `json:"current_page"`
	PageSize    int                `json:"page_size"`
	HasMore     bool               `json:"has_more"`
}

type ApplyResult struct {
	SessionID  uuid.UUID              `json:"session_id"`
	Filters    types.CandidateFilters `json:"filters"`
	TotalFound int                    `json:"total_found"`
	HasMore    bool                   `json:"has_more"`
}

// SessionService owns the per-session candidate result store and its
// pagination state. Filter applies are serialized per session so
// readers never observe a total from one filter paired with
// membership from another.
type SessionService interface {
	CreateSession(dbc dbctx.Context, userID uuid.UUID, jobDescription string, candidates []*types.Candidate) (*types.SearchSession, error)
	GetSession(dbc dbctx.Context, sessionID uuid.UUID) (*types.SearchSession, error)
	GetPage(dbc dbctx.Context, sessionID uuid.UUID, page int) (*PageResult, error)
	ListCandidates(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Candidate, error)
	EstimateCount(dbc dbctx.Context, sessionID uuid.UUID, filters types.CandidateFilters) (int, error)
	ApplyFilters(dbc dbctx.Context, sessionID uuid.UUID, filters types.CandidateFilters) (*ApplyResult, error)
	DeleteSession(dbc dbctx.Context, sessionID uuid.UUID) error
	StartTTLSweeper(ctx context.Context)
}

type sessionService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions searchrepo.SessionRepo
	cands    searchrepo.CandidateRepo
	locks    *kmutex.KeyedMutex
	ttl      time.Duration
}

func NewSessionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessions searchrepo.SessionRepo,
	cands searchrepo.CandidateRepo,
	ttl time.Duration,
) SessionService {
	return &sessionService{
		db:       db,
		log:      baseLog.With("service", "SessionService"),
		sessions: sessions,
		cands:    cands,
		locks:    kmutex.New(),
		ttl:      ttl,
	}
}

func (s *sessionService) CreateSession(dbc dbctx.Context, userID uuid.UUID, jobDescription string, candidates []*types.Candidate) (*types.SearchSession, error) {
	if jobDescription == "" {
		return nil, fmt.Errorf("%w: empty job description", pkgerrors.ErrInvalidArgument)
	}

	deduped := dedupCandidates(candidates)
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Score > deduped[j].Score })

	session := &types.SearchSession{
		ID:             uuid.New(),
		UserID:         userID,
		JobDescription: jobDescription,
		Status:         searchdomain.SessionCompleted,
		TotalFound:     len(deduped),
		PageSize:       searchdomain.DefaultPageSize,
	}
	if s.ttl > 0 {
		exp := time.Now().Add(s.ttl)
		session.ExpiresAt = &exp
	}

	for i, c := range deduped {
		c.SessionID = session.ID
		c.Rank = i + 1
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}

	if err := s.sessions.Create(dbc, session); err != nil {
		return nil, err
	}
	if err := s.cands.ReplaceForSession(dbc, session.ID, deduped); err != nil {
		return nil, err
	}
	s.log.Info("search session created", "session_id", session.ID, "total_found", session.TotalFound)
	return session, nil
}

func (s *sessionService) GetSession(dbc dbctx.Context, sessionID uuid.UUID) (*types.SearchSession, error) {
	return s.sessions.GetByID(dbc, sessionID)
}

func (s *sessionService) GetPage(dbc dbctx.Context, sessionID uuid.UUID, page int) (*PageResult, error) {
	// Page reads persist cursor state, so they serialize with filter
	// applies; otherwise a read snapshot could overwrite the page
	// reset with a stale cursor.
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: page must be >= 0", pkgerrors.ErrInvalidArgument)
	}
	// Requesting a page past the end is an error, not an empty page.
	if page > 0 && page*session.PageSize >= session.TotalFound {
		return nil, fmt.Errorf("%w: page %d out of range for %d results", pkgerrors.ErrInvalidArgument, page, session.TotalFound)
	}

	filters, err := decodeFilters(session.AppliedFilters)
	if err != nil {
		return nil, err
	}
	scopes := CompileScopes(filters, time.Now())

	candidates, err := s.cands.ListPage(dbc, sessionID, scopes, page, session.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	if page != session.CurrentPage {
		if err := s.sessions.UpdateFields(dbc, sessionID, map[string]interface{}{"current_page": page}); err != nil {
			return nil, err
		}
	}
	session.CurrentPage = page

	return &PageResult{
		SessionID:   sessionID,
		Candidates:  candidates,
		TotalFound:  session.TotalFound,
		CurrentPage: page,
		PageSize:    session.PageSize,
		HasMore:     session.HasMore(),
	}, nil
}

func (s *sessionService) ListCandidates(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Candidate, error) {
	candidates, err := s.cands.ListAll(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	return candidates, nil
}

// EstimateCount runs the filter against the store without touching
// the applied filter or pagination.
func (s *sessionService) EstimateCount(dbc dbctx.Context, sessionID uuid.UUID, filters types.CandidateFilters) (int, error) {
	if _, err := s.sessions.GetByID(dbc, sessionID); err != nil {
		return 0, err
	}
	n, err := s.cands.Count(dbc, sessionID, CompileScopes(filters, time.Now()))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func (s *sessionService) ApplyFilters(dbc dbctx.Context, sessionID uuid.UUID, filters types.CandidateFilters) (*ApplyResult, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrCompile, err)
	}

	n, err := s.cands.Count(dbc, sessionID, CompileScopes(filters, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	// Filter swap, page reset and total recompute land together.
	if err := s.sessions.UpdateFields(dbc, sessionID, map[string]interface{}{
		"applied_filters": datatypes.JSON(raw),
		"total_found":     int(n),
		"current_page":    0,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	s.log.Info("filters applied", "session_id", sessionID, "total_found", n)
	session.TotalFound = int(n)
	session.CurrentPage = 0
	return &ApplyResult{
		SessionID:  sessionID,
		Filters:    filters,
		TotalFound: int(n),
		HasMore:    session.HasMore(),
	}, nil
}

func (s *sessionService) DeleteSession(dbc dbctx.Context, sessionID uuid.UUID) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.sessions.Delete(dbc, sessionID)
}

// StartTTLSweeper periodically removes expired sessions and their
// conversations. Stops when ctx is cancelled.
func (s *sessionService) StartTTLSweeper(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.sessions.DeleteExpired(dbctx.New(ctx), time.Now())
				if err != nil {
					s.log.Warn("session ttl sweep failed", "error", err)
					continue
				}
				if n > 0 {
					s.log.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()
}

func dedupCandidates(candidates []*types.Candidate) []*types.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]*types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.Login == "" || seen[c.Login] {
			continue
		}
		seen[c.Login] = true
		out = append(out, c)
	}
	return out
}

func decodeFilters(raw datatypes.JSON) (types.CandidateFilters, error) {
	var f types.CandidateFilters
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("decode applied filters: %w", err)
	}
	return f, nil
}
