package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"dev.manna.backend/internal/config"
	"dev.manna.backend/internal/database"
	"dev.manna.backend/internal/handlers"
	"dev.manna.backend/internal/llm"
	"dev.manna.backend/internal/middleware"
	"dev.manna.backend/internal/observability/metrics"
	"dev.manna.backend/internal/services"
)

// APIServer wires the chat backend together and serves its HTTP surface
type APIServer struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *database.PostgresDB
	model     *llm.Client
	collector *metrics.Collector

	health        *handlers.HealthHandler
	diagnostics   *handlers.DiagnosticsHandler
	chat          *handlers.ChatHandler
	conversations *handlers.ConversationHandler
	messages      *handlers.MessageHandler
}

// NewAPIServer connects to the database, runs migrations and builds the
// service graph
func NewAPIServer(cfg *config.Config, logger *logrus.Logger) (*APIServer, error) {
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	collector := metrics.NewCollector()
	model := llm.NewClient(cfg, logger, collector)

	pool := db.GetPool()
	conversationRepo := database.NewConversationRepository(pool, logger, cfg.Chat.MaxConversationsPerUser)
	messageRepo := database.NewMessageRepository(pool, logger)
	summaryRepo := database.NewSummaryRepository(pool, logger)
	entityRepo := database.NewEntityRepository(pool, logger)

	chatService := services.NewChatService(
		conversationRepo, messageRepo, summaryRepo, entityRepo, model, cfg, logger,
	)

	return &APIServer{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		model:     model,
		collector: collector,

		health:        handlers.NewHealthHandler(db, model),
		diagnostics:   handlers.NewDiagnosticsHandler(),
		chat:          handlers.NewChatHandler(chatService, logger),
		conversations: handlers.NewConversationHandler(conversationRepo, messageRepo, logger),
		messages:      handlers.NewMessageHandler(conversationRepo, messageRepo, logger),
	}, nil
}

// Start registers the routes and blocks serving HTTP
func (s *APIServer) Start() error {
	gin.SetMode(s.cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.Recovery(s.cfg.Server.DebugEnabled, s.logger))
	if s.cfg.Server.EnableCORS {
		r.Use(corsMiddleware())
	}
	r.Use(middleware.Metrics(s.collector))

	api := r.Group("/api/v1")
	{
		handlers.RegisterHealthRoutes(api, s.health)
		handlers.RegisterDiagnosticsRoutes(api, s.diagnostics)

		if s.cfg.Monitoring.MetricsEnabled {
			api.GET(s.cfg.Monitoring.MetricsPath, gin.WrapH(s.collector.Handler()))
		}

		authed := api.Group("", middleware.RequireAuth(s.cfg, s.logger))
		{
			handlers.RegisterAuthedDiagnosticsRoutes(authed, s.diagnostics)
			handlers.RegisterChatRoutes(authed, s.chat)
			handlers.RegisterConversationRoutes(authed, s.conversations)
			handlers.RegisterMessageRoutes(authed, s.messages)
		}
	}

	s.probeDependencies()

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.logger.WithFields(logrus.Fields{
		"addr":  addr,
		"model": s.cfg.LLM.Model,
	}).Info("Starting chat backend")
	return r.Run(addr)
}

// Close releases the database pool
func (s *APIServer) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// probeDependencies reports dependencies that are down at boot. The server
// starts regardless; the health endpoint keeps reporting their state.
func (s *APIServer) probeDependencies() {
	if err := s.db.HealthCheck(); err != nil {
		s.logger.WithError(err).Warn("Database is not reachable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if !s.model.HealthCheck(ctx) {
		s.logger.Warn("LLM provider is not reachable")
	}
}

// corsMiddleware allows browser clients from any origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Failed to load .env file: %v\n", err)
	}

	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Monitoring.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	server, err := NewAPIServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize server")
	}
	defer server.Close()

	if err := server.Start(); err != nil {
		logger.WithError(err).Fatal("Server exited with error")
	}
}
