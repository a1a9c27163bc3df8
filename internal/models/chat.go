package models

import (
	"time"
)

// Chat is a persisted conversation between one user and one character.
// Messages are ordered by creation; the row itself carries no state beyond
// the pairing.
type Chat struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index"`
	CharacterID uint      `json:"character_id" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
