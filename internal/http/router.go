package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/gitscout/gitscout-backend/internal/http/handlers"
	httpMW "github.com/gitscout/gitscout-backend/internal/http/middleware"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	SearchHandler *httpH.SearchHandler
	ChatHandler   *httpH.ChatHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Discovery + results
		if cfg.SearchHandler != nil {
			protected.POST("/searches", cfg.SearchHandler.StartSearch)
			protected.GET("/searches/:search_id/stream", cfg.SearchHandler.Stream)
			protected.GET("/sessions/:session_id/results", cfg.SearchHandler.GetResults)
			protected.DELETE("/sessions/:session_id", cfg.SearchHandler.DeleteSession)
		}

		// Conversational refinement
		if cfg.ChatHandler != nil {
			protected.POST("/chat/message", cfg.ChatHandler.PostMessage)
			protected.POST("/chat/confirm-filter", cfg.ChatHandler.ConfirmFilter)
			protected.POST("/chat/answer-clarifications", cfg.ChatHandler.AnswerClarifications)
			protected.GET("/chat/conversations/:conversation_id", cfg.ChatHandler.GetConversation)
			protected.GET("/chat/sessions/:session_id/conversation", cfg.ChatHandler.GetSessionConversation)
		}
	}

	return r
}
