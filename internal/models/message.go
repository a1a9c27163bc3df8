package models

import (
	"time"
)

// Author identifies which side of the conversation produced a message.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Valid reports whether a is one of the two known authors.
func (a Author) Valid() bool {
	return a == AuthorUser || a == AuthorAssistant
}

// Message is a single turn in a chat. An assistant message with empty
// content is the in-flight placeholder: the reply has been requested but has
// not arrived. Empty content is the only pending signal; there is no
// separate flag.
type Message struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	ExternalID string    `json:"id" gorm:"index"`
	ChatID     uint      `json:"chat_id" gorm:"index"`
	Author     Author    `json:"author" gorm:"not null"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsPending reports whether m is the assistant placeholder awaiting content.
func (m Message) IsPending() bool {
	return m.Author == AuthorAssistant && m.Content == ""
}
