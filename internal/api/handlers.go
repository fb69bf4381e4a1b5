// Package api exposes the session boundary over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/session"
	"github.com/chative-dialogue/server/internal/agent/tools"
	errx "github.com/chative-dialogue/server/internal/core/error"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// Sessions is the conversation side of the API. *session.Manager satisfies it.
type Sessions interface {
	session.Handler
	Snapshot(conversationID string) (*model.SessionState, bool)
}

// ToolCache is the tool catalog side of the API. *tools.Cache satisfies it.
type ToolCache interface {
	Refresh(ctx context.Context) (*tools.Catalog, error)
	Stats() tools.Stats
}

type turnRequest struct {
	Message string `json:"message" binding:"required"`
}

type Handler struct {
	sessions Sessions
	tools    ToolCache
}

func NewHandler(sessions Sessions, toolCache ToolCache) *Handler {
	return &Handler{sessions: sessions, tools: toolCache}
}

// HandleTurn answers one utterance of a conversation.
func (h *Handler) HandleTurn(c *gin.Context) {
	id := c.Param("id")

	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	reply, err := h.sessions.HandleTurn(c.Request.Context(), id, req.Message)
	if errors.Is(err, session.ErrEmptyConversationID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// The reply is valid; only persistence failed.
		logx.Warn().Err(err).Str("conversation_id", id).Msg("Turn answered without persisting state")
	}
	c.JSON(http.StatusOK, model.TurnOutput{ConversationID: id, Reply: reply})
}

func (h *Handler) GetConversation(c *gin.Context) {
	state, ok := h.sessions.Snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": state.ConversationID,
		"context":         state.Context,
		"last_policy":     state.LastPolicy,
		"turns":           len(state.History) / 2,
	})
}

func (h *Handler) EndConversation(c *gin.Context) {
	if err := h.sessions.End(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RefreshTools drops the cached catalog and fetches it again.
func (h *Handler) RefreshTools(c *gin.Context) {
	catalog, err := h.tools.Refresh(c.Request.Context())
	if err != nil {
		logx.Error().Err(err).Msg("Tool catalog refresh failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "tool provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": catalog.Names()})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tools": h.tools.Stats()})
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrEmptyConversationID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var ae *errx.AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		c.JSON(ae.Status, gin.H{"error": ae.Message})
		return
	}
	logx.Error().Err(err).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": errx.SystemErrorMessage})
}
