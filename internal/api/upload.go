package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"character-companion/backend/internal/upload"
	apperrors "character-companion/backend/pkg/errors"
	"character-companion/backend/pkg/logger"
)

// TicketService is the upload coordination boundary.
type TicketService interface {
	RequestTicket(ctx context.Context, userID uint) (*upload.Ticket, error)
}

// UploadHandler hands out single-use signed upload URLs.
type UploadHandler struct {
	tickets TicketService
	logger  *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(tickets TicketService, log *logger.Logger) *UploadHandler {
	return &UploadHandler{tickets: tickets, logger: log}
}

// CreateTicket mints an upload ticket for the authenticated caller. The
// response carries the signed PUT target and the key the caller will later
// persist against a character record.
func (h *UploadHandler) CreateTicket(c *gin.Context) {
	userID := currentUserID(c)

	ticket, err := h.tickets.RequestTicket(c.Request.Context(), userID)
	if err != nil {
		appErr := apperrors.FromError(err)
		if appErr.Code != apperrors.CodeUnauthenticated {
			h.logger.LogError(err, "upload ticket request failed")
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fileUploadUrl": ticket.URL,
		"imageId":       ticket.Key,
	})
}
