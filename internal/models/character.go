package models

import (
	"time"
)

// Character is a chat persona. The Image field holds the opaque storage key
// of the uploaded portrait; URLs are derived at render time by the asset
// locator, never stored.
type Character struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Title     string    `json:"title"`
	Greeting  string    `json:"greeting" gorm:"not null"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCharacterRequest is the payload for registering a new character.
type CreateCharacterRequest struct {
	Name     string `json:"name" binding:"required"`
	Title    string `json:"title"`
	Greeting string `json:"greeting" binding:"required"`
	Image    string `json:"image"`
}
