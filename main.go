package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/chat"
	"github.com/studyloop-ai/studyloop-engine/pkg/config"
	"github.com/studyloop-ai/studyloop-engine/pkg/crypto"
	"github.com/studyloop-ai/studyloop-engine/pkg/database"
	"github.com/studyloop-ai/studyloop-engine/pkg/handlers"
	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/logging"
	"github.com/studyloop-ai/studyloop-engine/pkg/middleware"
	"github.com/studyloop-ai/studyloop-engine/pkg/permissions"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
	"github.com/studyloop-ai/studyloop-engine/pkg/retrieval"
	"github.com/studyloop-ai/studyloop-engine/pkg/websearch"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Host),
		zap.Int("models", len(cfg.AI.Models)))

	ctx := context.Background()

	// Database
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	sqlDB, err := database.OpenSQL(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	// Redis permission cache, optional
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Credential encryption for tenant model keys
	encryptor, err := crypto.NewCredentialEncryptor(cfg.ModelCredentialsKey)
	if err != nil {
		logger.Fatal("Failed to initialize credential encryptor", zap.Error(err))
	}

	// Repositories
	chunkRepo := repositories.NewChunkRepository(db)
	chatRepo := repositories.NewChatRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	modelRepo := repositories.NewModelRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)

	// Core services
	permissionTTL := time.Duration(cfg.Redis.PermissionTTLSeconds) * time.Second
	gate := permissions.NewGate(redisClient, membershipRepo, permissionTTL, logger)
	fanout := retrieval.NewFanout(chunkRepo, logger)

	embeddingAPIKey := cfg.AI.EmbeddingAPIKey
	if embeddingAPIKey == "" {
		embeddingAPIKey = cfg.AI.APIKey
	}
	embeddingBaseURL := cfg.AI.EmbeddingBaseURL
	if embeddingBaseURL == "" {
		embeddingBaseURL = cfg.AI.BaseURL
	}
	embedder := llm.NewOpenAIEmbedder(embeddingAPIKey, embeddingBaseURL, cfg.AI.EmbeddingModel, logger)
	resolver := llm.NewResolver(&cfg.AI, modelRepo, encryptor, logger)

	var webProvider websearch.Provider
	if cfg.WebSearch.BaseURL != "" {
		webProvider = websearch.NewClient(cfg.WebSearch.BaseURL, cfg.WebSearch.APIKey, logger)
	} else {
		logger.Info("Web search disabled, no base URL configured")
	}

	orchestrator := chat.NewOrchestrator(
		gate, fanout, embedder, resolver, webProvider,
		chatRepo, messageRepo, documentRepo, logger,
	)

	// HTTP surface
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewSearchHandler(gate, embedder, fanout, logger).RegisterRoutes(mux)
	handlers.NewMessagesHandler(orchestrator, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting studyloop-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
