package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/api/handlers"
	"github.com/ckd-chatbot/backend/internal/metrics"
	"github.com/ckd-chatbot/backend/internal/middleware/ratelimit"
	"github.com/ckd-chatbot/backend/internal/middleware/security"
	"github.com/ckd-chatbot/backend/internal/middleware/validation"
	"github.com/ckd-chatbot/backend/internal/session"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	defer logger.Sync()
	ctx := cmd.Context()

	logger.Info("Starting kidney QA API server")
	metrics.Init()

	built, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer built.graph.Close(context.Background())

	if !built.graph.Ping(ctx) {
		logger.Warn("Knowledge graph is not reachable yet", zap.String("uri", cfg.Neo4j.URI))
	}

	store, err := session.Open(ctx, session.Options{
		Backend:       cfg.Session.Backend,
		TTL:           time.Duration(cfg.Session.TTLHours) * time.Hour,
		SQLitePath:    cfg.SQLite.Path,
		RedisHost:     cfg.Redis.Host,
		RedisPort:     cfg.Redis.Port,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		Immutable:    true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Logger:               logger.Named("ratelimit"),
		})
		defer limiter.Stop()
		app.Use("/api", limiter.Middleware())
	}

	app.Use(validation.Middleware(validation.Config{Logger: logger.Named("validation")}))

	app.Get("/metrics", metrics.MetricsHandler())

	namer := session.NewNamer(store, built.secondary)
	handlers.Register(app, handlers.Handlers{
		Chat:      handlers.NewChatHandler(built.orchestrator, store, namer),
		Sessions:  handlers.NewSessionHandler(store),
		WebSocket: handlers.NewWebSocketHandler(built.orchestrator, store, namer),
		Health:    handlers.NewHealthHandler(built.graph),
		Admin:     handlers.NewAdminHandler(store),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", addr))

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
	return nil
}
