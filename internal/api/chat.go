package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"character-companion/backend/internal/models"
	"character-companion/backend/internal/service"
	"character-companion/backend/pkg/logger"
)

// ChatService is the server-side chat boundary the handler drives.
type ChatService interface {
	StartChat(ctx context.Context, userID, characterID uint, greeting string) (*service.Exchange, error)
	ContinueChat(ctx context.Context, userID, chatID uint, text string) (*service.Exchange, error)
	GetChatMessages(ctx context.Context, userID, chatID uint) ([]models.Message, error)
}

// ChatHandler handles the chat submission endpoint and transcript reads.
type ChatHandler struct {
	chats  ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chats ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: log}
}

// Submit accepts the form-encoded chat payload. A request carrying chatId
// and text continues that conversation; one carrying characterId (with the
// character's name and greeting) starts a fresh one.
func (h *ChatHandler) Submit(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		abortUnauthenticated(c, "an authenticated identity is required")
		return
	}

	if chatIDStr := c.PostForm("chatId"); chatIDStr != "" {
		h.continueChat(c, userID, chatIDStr)
		return
	}
	h.startChat(c, userID)
}

func (h *ChatHandler) startChat(c *gin.Context, userID uint) {
	characterIDStr := c.PostForm("characterId")
	if characterIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "characterId is required"})
		return
	}
	characterID, err := strconv.ParseUint(characterIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid characterId"})
		return
	}
	greeting := c.PostForm("greeting")
	if greeting == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "greeting is required for a fresh start"})
		return
	}

	exchange, err := h.chats.StartChat(c.Request.Context(), userID, uint(characterID), greeting)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, exchange)
}

func (h *ChatHandler) continueChat(c *gin.Context, userID uint, chatIDStr string) {
	chatID, err := strconv.ParseUint(chatIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chatId"})
		return
	}
	text := c.PostForm("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	exchange, err := h.chats.ContinueChat(c.Request.Context(), userID, uint(chatID), text)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, exchange)
}

// Messages returns a chat's transcript in conversation order, the
// rehydration source for resumed sessions.
func (h *ChatHandler) Messages(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		abortUnauthenticated(c, "an authenticated identity is required")
		return
	}

	chatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat id"})
		return
	}

	messages, err := h.chats.GetChatMessages(c.Request.Context(), userID, uint(chatID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id":  chatID,
		"messages": messages,
		"count":    len(messages),
	})
}

func (h *ChatHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCharacterNotFound),
		errors.Is(err, service.ErrChatNotFound),
		errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrChatFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrReplyFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"code":    "REPLY_FAILED",
				"message": "the assistant reply could not be produced, retry the send",
			},
		})
	default:
		h.logger.LogError(err, "chat request failed", "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
