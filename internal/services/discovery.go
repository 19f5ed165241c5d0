package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
	"github.com/gitscout/gitscout-backend/internal/realtime"
)

// SearchRunner is the discovery pipeline boundary: given a job
// description it produces scored candidates, reporting stage
// progress through the callback.
type SearchRunner interface {
	Run(ctx context.Context, jobDescription string, progress func(types.StepInfo)) ([]*types.Candidate, error)
}

// DiscoveryService starts a search in the background and turns its
// outcome into a session plus one terminal progress event.
type DiscoveryService interface {
	StartSearch(ctx context.Context, userID uuid.UUID, jobDescription string) (uuid.UUID, error)
}

type discoveryService struct {
	log       *logger.Logger
	sessions  SessionService
	runner    SearchRunner
	publisher *realtime.ProgressPublisher
	timeout   time.Duration
}

func NewDiscoveryService(
	baseLog *logger.Logger,
	sessions SessionService,
	runner SearchRunner,
	publisher *realtime.ProgressPublisher,
	timeout time.Duration,
) DiscoveryService {
	return &discoveryService{
		log:       baseLog.With("service", "DiscoveryService"),
		sessions:  sessions,
		runner:    runner,
		publisher: publisher,
		timeout:   timeout,
	}
}

func (s *discoveryService) StartSearch(_ context.Context, userID uuid.UUID, jobDescription string) (uuid.UUID, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return uuid.Nil, fmt.Errorf("%w: job description is required", pkgerrors.ErrInvalidArgument)
	}
	if s.runner == nil {
		return uuid.Nil, fmt.Errorf("%w: no search runner configured", pkgerrors.ErrStoreUnavailable)
	}

	searchID := uuid.New()
	// The run outlives the request; it gets its own deadline.
	go s.run(searchID, userID, jobDescription)
	return searchID, nil
}

func (s *discoveryService) run(searchID, userID uuid.UUID, jobDescription string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.log.With("search_id", searchID)
	log.Info("discovery run started")

	candidates, err := s.runner.Run(ctx, jobDescription, func(info types.StepInfo) {
		s.publisher.Step(searchID, info)
	})
	if err != nil {
		log.Error("discovery run failed", "error", err)
		s.publisher.Error(searchID, "The search could not be completed. Please try again.")
		return
	}

	session, err := s.sessions.CreateSession(dbctx.New(ctx), userID, jobDescription, candidates)
	if err != nil {
		log.Error("failed to store search session", "error", err)
		s.publisher.Error(searchID, "The search finished but its results could not be stored.")
		return
	}

	log.Info("discovery run completed", "session_id", session.ID, "total_found", session.TotalFound)
	s.publisher.Complete(searchID, session.ID, session.TotalFound)
}
