package app

import (
	"gorm.io/gorm"

	chatrepo "github.com/gitscout/gitscout-backend/internal/data/repos/chat"
	searchrepo "github.com/gitscout/gitscout-backend/internal/data/repos/search"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type Repos struct {
	Conversations chatrepo.ConversationRepo
	Messages      chatrepo.MessageRepo
	Sessions      searchrepo.SessionRepo
	Candidates    searchrepo.CandidateRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Conversations: chatrepo.NewConversationRepo(db, log),
		Messages:      chatrepo.NewMessageRepo(db, log),
		Sessions:      searchrepo.NewSessionRepo(db, log),
		Candidates:    searchrepo.NewCandidateRepo(db, log),
	}
}
