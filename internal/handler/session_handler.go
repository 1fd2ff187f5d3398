package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/model"
	"github.com/vaultgate/vaultgate/internal/service"
)

// SessionHandler exposes the internal producer endpoint the session
// authority calls after deciding a verification-stage transition
type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

type advanceStageRequest struct {
	Stage model.VerificationStageName `json:"stage" binding:"required"`
}

// AdvanceVerificationStage persists the stage change and broadcasts it
func (h *SessionHandler) AdvanceVerificationStage(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	var req advanceStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionService.AdvanceVerificationStage(sessionID, req.Stage)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to advance verification stage"})
		return
	}

	c.JSON(http.StatusOK, session)
}
