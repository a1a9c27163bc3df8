package service

import (
	"context"
	"fmt"

	"character-companion/backend/internal/models"
)

// Responder produces the assistant's side of a conversation. The actual
// generation backend lives behind this boundary; the chat service only
// persists and orders what comes back.
type Responder interface {
	Reply(ctx context.Context, character models.Character, history []models.Message, text string) (string, error)
}

// EchoResponder is the development responder: it answers in character
// without any generation backend.
type EchoResponder struct{}

// Reply returns a canned in-persona acknowledgement.
func (EchoResponder) Reply(_ context.Context, character models.Character, _ []models.Message, text string) (string, error) {
	return fmt.Sprintf("%s ponders your words: %q", character.Name, text), nil
}
