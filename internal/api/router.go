package api

import (
	"github.com/gin-gonic/gin"

	"character-companion/backend/internal/assets"
	"character-companion/backend/internal/service"
	apperrors "character-companion/backend/pkg/errors"
	"character-companion/backend/pkg/health"
	"character-companion/backend/pkg/jwt"
	"character-companion/backend/pkg/logger"
	"character-companion/backend/pkg/middleware"
	"character-companion/backend/pkg/observability"
	"character-companion/backend/pkg/validator"
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger      *logger.Logger
	JWTService  *jwt.Service
	Users       *service.UserService
	Characters  CharacterService
	Chats       ChatService
	Tickets     TicketService
	Locator     *assets.Locator
	RateLimiter *middleware.RateLimiter
	Health      *health.Checker
	// Validator is optional; nil skips schema validation (development mode).
	Validator *validator.OpenAPIValidator
}

// NewRouter assembles the Gin engine with the full middleware chain and all
// pipeline routes.
func NewRouter(deps Deps) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(deps.Logger))
	engine.Use(apperrors.RecoveryWithLogger())
	engine.Use(apperrors.ErrorHandler())
	engine.Use(observability.RequestMetrics())
	if deps.RateLimiter != nil {
		engine.Use(deps.RateLimiter.Middleware())
	}
	if deps.Validator != nil {
		engine.Use(deps.Validator.Middleware())
	}

	if deps.Health != nil {
		engine.GET("/health", deps.Health.Handler())
	}
	engine.GET("/metrics", observability.MetricsHandler())

	authHandler := NewAuthHandler(deps.Users, deps.Logger)
	chatHandler := NewChatHandler(deps.Chats, deps.Logger)
	uploadHandler := NewUploadHandler(deps.Tickets, deps.Logger)
	characterHandler := NewCharacterHandler(deps.Characters, deps.Locator)

	api := engine.Group("/api")
	{
		api.POST("/auth/signup", authHandler.Signup)
		api.POST("/auth/login", authHandler.Login)

		authed := api.Group("")
		authed.Use(AuthMiddleware(deps.JWTService))
		{
			authed.GET("/auth/me", authHandler.Me)

			authed.POST("/chat", chatHandler.Submit)
			authed.GET("/chats/:id/messages", chatHandler.Messages)

			authed.POST("/upload", uploadHandler.CreateTicket)

			authed.GET("/characters", characterHandler.List)
			authed.GET("/characters/:id", characterHandler.Get)
			authed.POST("/characters", characterHandler.Create)
		}
	}

	return engine
}
