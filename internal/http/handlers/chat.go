package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/http/response"
	"github.com/gitscout/gitscout-backend/internal/platform/ctxutil"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/services"
)

type ChatHandler struct {
	agent services.AgentService
	convs services.ConversationService
}

func NewChatHandler(agent services.AgentService, convs services.ConversationService) *ChatHandler {
	return &ChatHandler{agent: agent, convs: convs}
}

type chatMessageReq struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	SessionID      uuid.UUID  `json:"session_id"`
	Message        string     `json:"message"`
	IdempotencyKey string     `json:"idempotency_key"`
}

// POST /api/chat/message
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req chatMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())

	in := services.TurnInput{
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
		Message:        req.Message,
	}
	// Header wins over the body field when both are present.
	key := strings.TrimSpace(req.IdempotencyKey)
	if hdr := strings.TrimSpace(c.GetHeader("Idempotency-Key")); hdr != "" {
		key = hdr
	}
	if key != "" {
		in.IdempotencyKey = &key
	}

	dbc := dbctx.New(c.Request.Context())
	result, err := h.agent.ProcessMessage(dbc, rd.UserID, in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type confirmFilterReq struct {
	ConversationID  uuid.UUID               `json:"conversation_id"`
	MessageID       uuid.UUID               `json:"message_id"`
	Confirmed       bool                    `json:"confirmed"`
	ModifiedFilters *types.CandidateFilters `json:"modified_filters"`
}

// POST /api/chat/confirm-filter
func (h *ChatHandler) ConfirmFilter(c *gin.Context) {
	var req confirmFilterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())

	dbc := dbctx.New(c.Request.Context())
	result, err := h.agent.ConfirmFilter(dbc, rd.UserID, services.ConfirmInput{
		ConversationID:  req.ConversationID,
		MessageID:       req.MessageID,
		Confirmed:       req.Confirmed,
		ModifiedFilters: req.ModifiedFilters,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type answerClarificationsReq struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	MessageID      uuid.UUID         `json:"message_id"`
	Answers        map[string]string `json:"answers"`
}

// POST /api/chat/answer-clarifications
func (h *ChatHandler) AnswerClarifications(c *gin.Context) {
	var req answerClarificationsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())

	dbc := dbctx.New(c.Request.Context())
	result, err := h.agent.AnswerClarifications(dbc, rd.UserID, services.AnswerInput{
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Answers:        req.Answers,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/chat/conversations/:conversation_id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("conversation_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())

	dbc := dbctx.New(c.Request.Context())
	result, err := h.convs.GetByID(dbc, rd.UserID, conversationID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/chat/sessions/:session_id/conversation
func (h *ChatHandler) GetSessionConversation(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())

	dbc := dbctx.New(c.Request.Context())
	result, err := h.convs.GetBySession(dbc, rd.UserID, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
