package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"character-companion/backend/internal/api"
	"character-companion/backend/internal/assets"
	"character-companion/backend/internal/models"
	"character-companion/backend/internal/service"
	"character-companion/backend/internal/upload"
	"character-companion/backend/pkg/cache"
	"character-companion/backend/pkg/config"
	"character-companion/backend/pkg/health"
	"character-companion/backend/pkg/jwt"
	"character-companion/backend/pkg/logger"
	"character-companion/backend/pkg/middleware"
	"character-companion/backend/pkg/observability"
	"character-companion/backend/pkg/secrets"
	"character-companion/backend/pkg/validator"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "env", cfg.Server.Env, "version", os.Getenv("APP_VERSION"))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	secretsManager, err := secrets.NewManager(log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	jwtSecret := secretsManager.GetSecretWithDefault(ctx, "jwt_secret", cfg.JWT.Secret)
	if jwtSecret == "" {
		log.Error("JWT secret is not configured")
		os.Exit(1)
	}

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Character{}, &models.Chat{}, &models.Message{}); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_chat")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id)").Error; err != nil {
		log.LogError(err, "Failed to create chat index", "index", "idx_chats_user")
	}

	appCache := cache.New(cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Cache.TTL,
		Enabled:  cfg.Cache.Enabled,
	})

	tracerShutdown, err := observability.SetupTracing("character-companion-backend")
	if err != nil {
		log.LogError(err, "Failed to initialize tracing")
	}
	if _, err := observability.SetupMetrics(); err != nil {
		log.LogError(err, "Failed to initialize metrics")
	}

	jwtService := jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	signer, err := upload.NewS3Signer(ctx, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.PresignExpiry)
	if err != nil {
		log.LogError(err, "Failed to initialize upload signer")
		os.Exit(1)
	}

	userService := service.NewUserService(db, jwtService)
	characterService := service.NewCharacterService(db, appCache)
	responder := service.EchoResponder{}
	chatService := service.NewChatService(db, characterService, responder, log)
	coordinator := upload.NewCoordinator(signer)
	locator := assets.NewLocator(cfg.Storage.Bucket, cfg.Storage.Region)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("database", func(ctx context.Context) error {
		return config.TestConnection(db)
	})
	checker.Register("cache", func(ctx context.Context) error {
		return appCache.Ping(ctx)
	})

	var openAPIValidator *validator.OpenAPIValidator
	if _, err := os.Stat(cfg.OpenAPI.SchemaPath); err == nil {
		openAPIValidator, err = validator.NewOpenAPIValidator(cfg.OpenAPI.SchemaPath)
		if err != nil {
			log.LogError(err, "Failed to load OpenAPI schema", "path", cfg.OpenAPI.SchemaPath)
			os.Exit(1)
		}
		log.Info("OpenAPI request validation enabled", "path", cfg.OpenAPI.SchemaPath)
	}

	limiterOptions := middleware.DefaultRateLimiterOptions()
	limiterOptions.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOptions.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(log, limiterOptions)

	engine := api.NewRouter(api.Deps{
		Logger:      log,
		JWTService:  jwtService,
		Users:       userService,
		Characters:  characterService,
		Chats:       chatService,
		Tickets:     coordinator,
		Locator:     locator,
		RateLimiter: rateLimiter,
		Health:      checker,
		Validator:   openAPIValidator,
	})
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		log.LogError(err, "Failed to set trusted proxies")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			log.LogError(err, "Tracer shutdown failed")
		}
	}
	closeDB(db, log)

	log.Info("Server exited gracefully")
}

func closeDB(db *gorm.DB, log *logger.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.LogError(err, "Failed to access underlying connection pool")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.LogError(err, "Failed to close database connections")
	}
}
