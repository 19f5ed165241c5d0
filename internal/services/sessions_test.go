package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	searchrepo "github.com/gitscout/gitscout-backend/internal/data/repos/search"
	types "github.com/gitscout/gitscout-backend/internal/domain"
	searchdomain "github.com/gitscout/gitscout-backend/internal/domain/search"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.SearchSession
	updates  []map[string]interface{}
	// gateGet blocks the next GetByID until the channel is closed.
	gateGet chan struct{}
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*types.SearchSession{}}
}

func (r *fakeSessionRepo) Create(_ dbctx.Context, session *types.SearchSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.SearchSession, error) {
	r.mu.Lock()
	gate := r.gateGet
	r.gateGet = nil
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, pkgerrors.ErrNotFound)
	}
	cp := *session
	return &cp, nil
}

func (r *fakeSessionRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, pkgerrors.ErrNotFound)
	}
	for key, val := range fields {
		switch key {
		case "current_page":
			session.CurrentPage = val.(int)
		case "total_found":
			session.TotalFound = val.(int)
		case "applied_filters":
			session.AppliedFilters = val.(datatypes.JSON)
		default:
			return fmt.Errorf("unexpected field %q", key)
		}
	}
	r.updates = append(r.updates, fields)
	return nil
}

func (r *fakeSessionRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(dbctx.Context, time.Time) (int64, error) { return 0, nil }

func (r *fakeSessionRepo) stored(t *testing.T, id uuid.UUID) types.SearchSession {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		t.Fatalf("session %s not stored", id)
	}
	return *session
}

type fakeCandidateRepo struct {
	mu        sync.Mutex
	bySession map[uuid.UUID][]*types.Candidate
	// filteredCount stands in for scope evaluation; nil means "all".
	filteredCount *int64
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{bySession: map[uuid.UUID][]*types.Candidate{}}
}

func (r *fakeCandidateRepo) ReplaceForSession(_ dbctx.Context, sessionID uuid.UUID, candidates []*types.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[sessionID] = candidates
	return nil
}

func (r *fakeCandidateRepo) ListPage(_ dbctx.Context, sessionID uuid.UUID, _ []searchrepo.Scope, page, pageSize int) ([]*types.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.bySession[sessionID]
	start := page * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *fakeCandidateRepo) Count(_ dbctx.Context, sessionID uuid.UUID, _ []searchrepo.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filteredCount != nil {
		return *r.filteredCount, nil
	}
	return int64(len(r.bySession[sessionID])), nil
}

func (r *fakeCandidateRepo) ListAll(_ dbctx.Context, sessionID uuid.UUID) ([]*types.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bySession[sessionID], nil
}

type sessionFixture struct {
	svc      SessionService
	sessions *fakeSessionRepo
	cands    *fakeCandidateRepo
	dbc      dbctx.Context
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	sessions := newFakeSessionRepo()
	cands := newFakeCandidateRepo()
	return &sessionFixture{
		svc:      NewSessionService(nil, log, sessions, cands, time.Hour),
		sessions: sessions,
		cands:    cands,
		dbc:      dbctx.New(context.Background()),
	}
}

func (f *sessionFixture) seed(t *testing.T, totalFound, pageSize, currentPage int) *types.SearchSession {
	t.Helper()
	session := &types.SearchSession{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		JobDescription: "senior go engineer",
		Status:         searchdomain.SessionCompleted,
		TotalFound:     totalFound,
		PageSize:       pageSize,
		CurrentPage:    currentPage,
	}
	if err := f.sessions.Create(f.dbc, session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	candidates := make([]*types.Candidate, totalFound)
	for i := range candidates {
		candidates[i] = &types.Candidate{
			ID:        uuid.New(),
			SessionID: session.ID,
			Login:     fmt.Sprintf("dev%02d", i),
			Rank:      i + 1,
		}
	}
	if err := f.cands.ReplaceForSession(f.dbc, session.ID, candidates); err != nil {
		t.Fatalf("seed candidates: %v", err)
	}
	return session
}

func TestApplyFiltersResetsPage(t *testing.T) {
	f := newSessionFixture(t)
	session := f.seed(t, 30, 10, 2)
	filtered := int64(12)
	f.cands.filteredCount = &filtered

	res, err := f.svc.ApplyFilters(f.dbc, session.ID, types.CandidateFilters{FollowersMin: intptr(100)})
	if err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}
	if res.TotalFound != 12 || !res.HasMore {
		t.Fatalf("result = %+v, want total 12 with more pages", res)
	}

	stored := f.sessions.stored(t, session.ID)
	if stored.CurrentPage != 0 {
		t.Fatalf("current_page = %d, want reset to 0", stored.CurrentPage)
	}
	if stored.TotalFound != 12 {
		t.Fatalf("total_found = %d, want recomputed 12", stored.TotalFound)
	}
	if len(stored.AppliedFilters) == 0 {
		t.Fatal("applied_filters not persisted")
	}

	// Reapplying the same filter yields the same membership.
	again, err := f.svc.ApplyFilters(f.dbc, session.ID, types.CandidateFilters{FollowersMin: intptr(100)})
	if err != nil {
		t.Fatalf("ApplyFilters again: %v", err)
	}
	if again.TotalFound != res.TotalFound {
		t.Fatalf("reapply total = %d, want %d", again.TotalFound, res.TotalFound)
	}
}

func TestGetPageBeyondEndRejected(t *testing.T) {
	f := newSessionFixture(t)
	session := f.seed(t, 15, 10, 0)

	if _, err := f.svc.GetPage(f.dbc, session.ID, 2); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("page past the end: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := f.svc.GetPage(f.dbc, session.ID, -1); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("negative page: err = %v, want ErrInvalidArgument", err)
	}

	last, err := f.svc.GetPage(f.dbc, session.ID, 1)
	if err != nil {
		t.Fatalf("GetPage 1: %v", err)
	}
	if len(last.Candidates) != 5 || last.HasMore {
		t.Fatalf("last page = %d candidates has_more=%v, want 5 and false", len(last.Candidates), last.HasMore)
	}
	if stored := f.sessions.stored(t, session.ID); stored.CurrentPage != 1 {
		t.Fatalf("current_page = %d, want cursor persisted at 1", stored.CurrentPage)
	}
}

func TestEstimateCountDoesNotMutate(t *testing.T) {
	f := newSessionFixture(t)
	session := f.seed(t, 20, 10, 1)
	filtered := int64(4)
	f.cands.filteredCount = &filtered

	n, err := f.svc.EstimateCount(f.dbc, session.ID, types.CandidateFilters{Location: strptr("Berlin")})
	if err != nil {
		t.Fatalf("EstimateCount: %v", err)
	}
	if n != 4 {
		t.Fatalf("estimate = %d, want 4", n)
	}

	stored := f.sessions.stored(t, session.ID)
	if stored.CurrentPage != 1 || stored.TotalFound != 20 || len(stored.AppliedFilters) != 0 {
		t.Fatalf("session mutated by estimate: %+v", stored)
	}
	if len(f.sessions.updates) != 0 {
		t.Fatalf("updates = %d, estimate must not write", len(f.sessions.updates))
	}
}

func TestGetPageSerializesWithApplyFilters(t *testing.T) {
	f := newSessionFixture(t)
	session := f.seed(t, 30, 10, 0)

	gate := make(chan struct{})
	f.sessions.mu.Lock()
	f.sessions.gateGet = gate
	f.sessions.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := f.svc.GetPage(f.dbc, session.ID, 1); err != nil {
			t.Errorf("GetPage: %v", err)
		}
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		if _, err := f.svc.ApplyFilters(f.dbc, session.ID, types.CandidateFilters{FollowersMin: intptr(10)}); err != nil {
			t.Errorf("ApplyFilters: %v", err)
		}
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	// The apply must not be overwritten by the stalled page read.
	if stored := f.sessions.stored(t, session.ID); stored.CurrentPage != 0 {
		t.Fatalf("current_page = %d, want the filter apply's reset to win", stored.CurrentPage)
	}
}
