package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gitscout/gitscout-backend/internal/http/response"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/ctxutil"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/realtime"
	"github.com/gitscout/gitscout-backend/internal/services"
)

type SearchHandler struct {
	discovery services.DiscoveryService
	sessions  services.SessionService
	hub       *realtime.Hub
}

func NewSearchHandler(discovery services.DiscoveryService, sessions services.SessionService, hub *realtime.Hub) *SearchHandler {
	return &SearchHandler{discovery: discovery, sessions: sessions, hub: hub}
}

type startSearchReq struct {
	JobDescription string `json:"job_description"`
}

// POST /api/searches
func (h *SearchHandler) StartSearch(c *gin.Context) {
	var req startSearchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())

	searchID, err := h.discovery.StartSearch(c.Request.Context(), rd.UserID, req.JobDescription)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"search_id": searchID,
		"channel":   realtime.ProgressChannel(searchID),
	})
}

// GET /api/searches/:search_id/stream
func (h *SearchHandler) Stream(c *gin.Context) {
	searchID, err := uuid.Parse(c.Param("search_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_search_id", err)
		return
	}
	client := h.hub.Subscribe(realtime.ProgressChannel(searchID))
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

// GET /api/sessions/:session_id/results?page=N
func (h *SearchHandler) GetResults(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	page := 0
	if v := strings.TrimSpace(c.Query("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_page", err)
			return
		}
		page = n
	}

	dbc := dbctx.New(c.Request.Context())
	if err := h.authorizeSession(c, dbc, sessionID); err != nil {
		return
	}
	result, err := h.sessions.GetPage(dbc, sessionID, page)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// DELETE /api/sessions/:session_id
func (h *SearchHandler) DeleteSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	dbc := dbctx.New(c.Request.Context())
	if err := h.authorizeSession(c, dbc, sessionID); err != nil {
		return
	}
	if err := h.sessions.DeleteSession(dbc, sessionID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

// authorizeSession responds for the caller when the session is
// missing or owned by someone else.
func (h *SearchHandler) authorizeSession(c *gin.Context, dbc dbctx.Context, sessionID uuid.UUID) error {
	session, err := h.sessions.GetSession(dbc, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return err
	}
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || session.UserID != rd.UserID {
		err := fmt.Errorf("session owner mismatch: %w", pkgerrors.ErrUnauthorized)
		response.RespondServiceError(c, err)
		return err
	}
	return nil
}
