package app

import (
	"strings"
	"time"

	"github.com/gitscout/gitscout-backend/internal/platform/envutil"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	Debug       bool
	JWTSecret   string
	CORSOrigins []string

	GeminiAPIKey string
	GeminiModel  string

	ClassifierTimeout     time.Duration
	SearchTimeout         time.Duration
	SessionTTL            time.Duration
	MaxConversationTokens int
}

func LoadConfig(log *logger.Logger) Config {
	var origins []string
	if raw := envutil.GetEnv("CORS_ORIGINS", "", log); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		Port:        envutil.GetEnv("PORT", "8080", log),
		Debug:       envutil.GetEnvAsBool("DEBUG", false, log),
		JWTSecret:   envutil.GetEnv("JWT_SECRET", "defaultsecret", log),
		CORSOrigins: origins,

		GeminiAPIKey: envutil.GetEnv("GEMINI_API_KEY", "", log),
		GeminiModel:  envutil.GetEnv("GEMINI_MODEL", "", log),

		ClassifierTimeout:     time.Duration(envutil.GetEnvAsInt("CLASSIFIER_TIMEOUT_MS", 10000, log)) * time.Millisecond,
		SearchTimeout:         time.Duration(envutil.GetEnvAsInt("SEARCH_TIMEOUT_MIN", 10, log)) * time.Minute,
		SessionTTL:            time.Duration(envutil.GetEnvAsInt("SESSION_TTL_MIN", 60, log)) * time.Minute,
		MaxConversationTokens: envutil.GetEnvAsInt("MAX_CONVERSATION_TOKENS", 50000, log),
	}
}
