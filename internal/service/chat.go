package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"character-companion/backend/internal/models"
	"character-companion/backend/pkg/config"
	"character-companion/backend/pkg/logger"
	"character-companion/backend/pkg/resilience"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrChatFull     = errors.New("chat has reached its message limit")
	ErrReplyFailed  = errors.New("could not produce an assistant reply")
)

// Exchange is the outcome of one chat operation: the persisted chat id and
// the message(s) created by it, in conversation order.
type Exchange struct {
	ChatID   uint             `json:"chat_id"`
	Messages []models.Message `json:"messages"`
}

// ChatService owns chat rows and their ordered message logs. Replies come
// from the Responder boundary, guarded by a circuit breaker so a failing
// generation backend degrades into retryable errors instead of piling up.
type ChatService struct {
	db          *gorm.DB
	characters  *CharacterService
	responder   Responder
	breaker     *resilience.CircuitBreaker
	maxMessages int
	log         *logger.Logger
}

// NewChatService creates a new chat service
func NewChatService(db *gorm.DB, characters *CharacterService, responder Responder, log *logger.Logger) *ChatService {
	return &ChatService{
		db:          db,
		characters:  characters,
		responder:   responder,
		breaker:     resilience.New(resilience.DefaultConfig("responder"), log),
		maxMessages: config.Get().Chat.MaxMessagesPerChat,
		log:         log,
	}
}

// StartChat creates a chat row for (user, character) seeded with a greeting
// as the first assistant message. The greeting the client rendered takes
// precedence; the character's stored greeting is the fallback.
func (s *ChatService) StartChat(ctx context.Context, userID, characterID uint, greeting string) (*Exchange, error) {
	character, err := s.characters.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}

	chat := models.Chat{UserID: userID, CharacterID: characterID}
	if err := s.db.WithContext(ctx).Create(&chat).Error; err != nil {
		return nil, err
	}

	if greeting == "" {
		greeting = character.Greeting
	}
	seed := models.Message{
		ExternalID: uuid.NewString(),
		ChatID:     chat.ID,
		Author:     models.AuthorAssistant,
		Content:    greeting,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&seed).Error; err != nil {
		return nil, err
	}

	s.log.Info("chat started",
		"chat_id", chat.ID,
		"user_id", userID,
		"character_id", characterID,
	)

	return &Exchange{ChatID: chat.ID, Messages: []models.Message{seed}}, nil
}

// ContinueChat appends the user's message, obtains an assistant reply and
// persists both. The user message is kept even when the reply fails so a
// retry continues the same conversation.
func (s *ChatService) ContinueChat(ctx context.Context, userID, chatID uint, text string) (*Exchange, error) {
	chat, err := s.getOwnedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	character, err := s.characters.GetCharacter(ctx, chat.CharacterID)
	if err != nil {
		return nil, err
	}

	history, err := s.loadMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if s.maxMessages > 0 && len(history) >= s.maxMessages {
		return nil, ErrChatFull
	}

	userMsg := models.Message{
		ExternalID: uuid.NewString(),
		ChatID:     chat.ID,
		Author:     models.AuthorUser,
		Content:    text,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&userMsg).Error; err != nil {
		return nil, err
	}

	var reply string
	err = s.breaker.Execute(func() error {
		var replyErr error
		reply, replyErr = s.responder.Reply(ctx, *character, history, text)
		return replyErr
	})
	if err != nil {
		s.log.LogError(err, "responder failed", "chat_id", chat.ID)
		return nil, ErrReplyFailed
	}

	assistantMsg := models.Message{
		ExternalID: uuid.NewString(),
		ChatID:     chat.ID,
		Author:     models.AuthorAssistant,
		Content:    reply,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&assistantMsg).Error; err != nil {
		return nil, err
	}

	return &Exchange{ChatID: chat.ID, Messages: []models.Message{userMsg, assistantMsg}}, nil
}

// GetChatMessages returns a chat's transcript in conversation order. The
// chat must belong to the requesting user.
func (s *ChatService) GetChatMessages(ctx context.Context, userID, chatID uint) ([]models.Message, error) {
	chat, err := s.getOwnedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	return s.loadMessages(ctx, chat.ID)
}

func (s *ChatService) getOwnedChat(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	var chat models.Chat
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", chatID, userID).First(&chat)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, result.Error
	}
	return &chat, nil
}

func (s *ChatService) loadMessages(ctx context.Context, chatID uint) ([]models.Message, error) {
	var messages []models.Message
	result := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id ASC").Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}
