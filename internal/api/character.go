package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"character-companion/backend/internal/assets"
	"character-companion/backend/internal/models"
	"character-companion/backend/internal/service"
)

// CharacterService is the character persistence boundary.
type CharacterService interface {
	GetCharacter(ctx context.Context, id uint) (*models.Character, error)
	ListCharacters(ctx context.Context) ([]models.Character, error)
	CreateCharacter(ctx context.Context, req *models.CreateCharacterRequest) (*models.Character, error)
}

// CharacterHandler serves character rows with their image keys resolved to
// concrete asset URLs per surface: explore cards, thumbnails, detail pages.
type CharacterHandler struct {
	characters CharacterService
	locator    *assets.Locator
}

// NewCharacterHandler creates a new character handler
func NewCharacterHandler(characters CharacterService, locator *assets.Locator) *CharacterHandler {
	return &CharacterHandler{characters: characters, locator: locator}
}

// characterView is a character row plus render-ready image URLs.
type characterView struct {
	models.Character
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// List returns all characters for the browse surface.
func (h *CharacterHandler) List(c *gin.Context) {
	characters, err := h.characters.ListCharacters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list characters"})
		return
	}

	views := make([]characterView, len(characters))
	for i, character := range characters {
		views[i] = characterView{
			Character:    character,
			ImageURL:     h.locator.Resolve(character.Image, assets.SizeExplore),
			ThumbnailURL: h.locator.Resolve(character.Image, assets.SizeSmall),
		}
	}

	c.JSON(http.StatusOK, gin.H{"characters": views, "count": len(views)})
}

// Get returns one character for the detail surface.
func (h *CharacterHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid character id"})
		return
	}

	character, err := h.characters.GetCharacter(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrCharacterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load character"})
		return
	}

	c.JSON(http.StatusOK, characterView{
		Character:    *character,
		ImageURL:     h.locator.Resolve(character.Image, assets.SizeMedium),
		ThumbnailURL: h.locator.Resolve(character.Image, assets.SizeSmall),
	})
}

// Create registers a new character. The image field carries the storage key
// obtained from the upload-ticket flow once the direct PUT completed.
func (h *CharacterHandler) Create(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	character, err := h.characters.CreateCharacter(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create character"})
		return
	}

	c.JSON(http.StatusCreated, characterView{
		Character:    *character,
		ImageURL:     h.locator.Resolve(character.Image, assets.SizeMedium),
		ThumbnailURL: h.locator.Resolve(character.Image, assets.SizeSmall),
	})
}
