package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/gitscout/gitscout-backend/internal/platform/logger"
	"github.com/gitscout/gitscout-backend/internal/realtime"
	"github.com/gitscout/gitscout-backend/internal/services"
)

type Services struct {
	Sessions      services.SessionService
	Conversations services.ConversationService
	Agent         services.AgentService
	Discovery     services.DiscoveryService

	Publisher *realtime.ProgressPublisher
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	repos Repos,
	hub *realtime.Hub,
	clients Clients,
	runner services.SearchRunner,
) Services {
	log.Info("Wiring services...")

	sessionService := services.NewSessionService(db, log, repos.Sessions, repos.Candidates, cfg.SessionTTL)
	conversationService := services.NewConversationService(db, log, repos.Conversations, repos.Messages)

	classifier := services.NewRuleClassifier()
	var questions services.QuestionGenerator
	if clients.Gemini != nil {
		questions = services.NewGeminiQuestionGenerator(clients.Gemini, log)
	}

	agentService := services.NewAgentService(
		db, log,
		repos.Conversations,
		repos.Messages,
		conversationService,
		sessionService,
		classifier,
		questions,
		cfg.ClassifierTimeout,
		cfg.MaxConversationTokens,
	)

	// With a bus every event goes through Redis and comes back via the
	// forwarder, so each instance broadcasts exactly once.
	sink := hub.Broadcast
	if clients.Bus != nil {
		sink = func(ev realtime.Event) {
			if err := clients.Bus.Publish(context.Background(), ev); err != nil {
				log.Warn("failed to publish progress event", "channel", ev.Channel, "error", err)
			}
		}
	}
	publisher := realtime.NewProgressPublisher(log, sink)

	discoveryService := services.NewDiscoveryService(log, sessionService, runner, publisher, cfg.SearchTimeout)

	return Services{
		Sessions:      sessionService,
		Conversations: conversationService,
		Agent:         agentService,
		Discovery:     discoveryService,
		Publisher:     publisher,
	}
}
