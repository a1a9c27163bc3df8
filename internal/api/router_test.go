package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"character-companion/backend/internal/assets"
	"character-companion/backend/internal/models"
	"character-companion/backend/internal/service"
	"character-companion/backend/pkg/jwt"
)

func testDeps(t *testing.T) (Deps, *jwt.Service) {
	t.Helper()
	jwtService := jwt.NewService("test-secret", time.Hour)
	return Deps{
		Logger:     testLogger(),
		JWTService: jwtService,
		Characters: &stubCharacterService{
			listFn: func(context.Context) ([]models.Character, error) {
				return []models.Character{{ID: 1, Name: "Elara", Image: "abc123"}}, nil
			},
		},
		Chats: &stubChatService{
			startFn: func(context.Context, uint, uint, string) (*service.Exchange, error) {
				return &service.Exchange{ChatID: 1}, nil
			},
		},
		Tickets: &stubTicketService{},
		Locator: assets.NewLocator("content", "us-west-1"),
	}, jwtService
}

func TestRouterRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := testDeps(t)
	engine := NewRouter(deps)

	for _, path := range []string{"/api/characters", "/api/chats/1/messages", "/api/auth/me"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Contains(t, w.Body.String(), "UNAUTHENTICATED", path)
	}
}

func TestRouterRejectsExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := testDeps(t)
	engine := NewRouter(deps)

	expired := jwt.NewService("test-secret", -time.Minute)
	token, err := expired.GenerateToken(7, "elara@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/characters", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, jwtService := testDeps(t)
	engine := NewRouter(deps)

	token, err := jwtService.GenerateToken(7, "elara@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/characters", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Elara")
}

func TestRouterServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, _ := testDeps(t)
	engine := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
