package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"character-companion/backend/internal/models"
	"character-companion/backend/pkg/cache"

	"gorm.io/gorm"
)

var ErrCharacterNotFound = errors.New("character not found")

// CharacterService reads and writes character rows. Reads go through the
// redis cache; characters change rarely and are fetched on every chat turn.
type CharacterService struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewCharacterService creates a new character service
func NewCharacterService(db *gorm.DB, c *cache.Cache) *CharacterService {
	return &CharacterService{db: db, cache: c}
}

func characterCacheKey(id uint) string {
	return fmt.Sprintf("character:%d", id)
}

// GetCharacter retrieves a character by id, preferring the cache.
func (s *CharacterService) GetCharacter(ctx context.Context, id uint) (*models.Character, error) {
	var character models.Character

	hit, err := s.cache.GetJSON(ctx, characterCacheKey(id), &character)
	if err == nil && hit {
		return &character, nil
	}

	result := s.db.WithContext(ctx).First(&character, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, result.Error
	}

	// Best-effort cache write.
	_ = s.cache.SetJSON(ctx, characterCacheKey(id), &character)

	return &character, nil
}

// ListCharacters returns all characters ordered by creation.
func (s *CharacterService) ListCharacters(ctx context.Context) ([]models.Character, error) {
	var characters []models.Character
	result := s.db.WithContext(ctx).Order("created_at ASC").Find(&characters)
	if result.Error != nil {
		return nil, result.Error
	}
	return characters, nil
}

// CreateCharacter registers a new character. The Image field is the storage
// key returned by the upload-ticket flow, persisted here after the direct
// PUT completed.
func (s *CharacterService) CreateCharacter(ctx context.Context, req *models.CreateCharacterRequest) (*models.Character, error) {
	character := &models.Character{
		Name:      req.Name,
		Title:     req.Title,
		Greeting:  req.Greeting,
		Image:     req.Image,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(character).Error; err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, characterCacheKey(character.ID))
	return character, nil
}
