package app

import (
	"context"
	"os"
	"strings"

	"github.com/gitscout/gitscout-backend/internal/clients/gemini"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
	"github.com/gitscout/gitscout-backend/internal/realtime"
)

type Clients struct {
	// Gemini is optional; without it clarification questions come
	// from the rule classifier alone.
	Gemini *gemini.Client
	// Bus is optional; without it progress events stay local to this
	// instance.
	Bus realtime.Bus
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) Clients {
	log.Info("Wiring clients...")
	var clients Clients

	if cfg.GeminiAPIKey != "" {
		ai, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Warn("gemini client init failed, continuing without it", "error", err)
		} else {
			clients.Gemini = ai
		}
	}

	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err := realtime.NewRedisBus(log)
		if err != nil {
			log.Warn("redis bus init failed, progress events stay local", "error", err)
		} else {
			clients.Bus = bus
		}
	}

	return clients
}
