package db

import (
	types "github.com/gitscout/gitscout-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Search sessions + candidate result store
		&types.SearchSession{},
		&types.Candidate{},

		// Conversations + message history
		&types.Conversation{},
		&types.ChatMessage{},
	)
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
