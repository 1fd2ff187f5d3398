package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vaultgate/vaultgate/internal/gateway"
	"github.com/vaultgate/vaultgate/internal/service"
)

// NotificationHandler exposes the internal producer endpoint used by the rest
// of the vault backend to queue a push notification
type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type createNotificationRequest struct {
	RecipientDeviceID uuid.UUID       `json:"recipient_device_id" binding:"required"`
	Payload           json.RawMessage `json:"payload" binding:"required"`
}

// CreateNotification queues a notification and attempts immediate delivery
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.notificationService.CreateAndDeliver(c.Request.Context(), req.RecipientDeviceID, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownDevice):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, gateway.ErrStageRowsMissing):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		}
		return
	}

	c.JSON(http.StatusCreated, n)
}
