package app

import (
	"github.com/gin-gonic/gin"

	"github.com/gitscout/gitscout-backend/internal/http"
	httpH "github.com/gitscout/gitscout-backend/internal/http/handlers"
	httpMW "github.com/gitscout/gitscout-backend/internal/http/middleware"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
	"github.com/gitscout/gitscout-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Search *httpH.SearchHandler
	Chat   *httpH.ChatHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Search: httpH.NewSearchHandler(services.Discovery, services.Sessions, hub),
		Chat:   httpH.NewChatHandler(services.Agent, services.Conversations),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecret),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		SearchHandler:  handlers.Search,
		ChatHandler:    handlers.Chat,
		HealthHandler:  handlers.Health,
	})
}
