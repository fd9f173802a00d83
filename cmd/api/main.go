package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/supportiq-platform/supportiq/internal/admin"
	"github.com/supportiq-platform/supportiq/internal/analysis"
	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/audit"
	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/chat"
	"github.com/supportiq-platform/supportiq/internal/config"
	"github.com/supportiq-platform/supportiq/internal/database"
	"github.com/supportiq-platform/supportiq/internal/events"
	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/middleware"
	iredis "github.com/supportiq-platform/supportiq/internal/redis"
	"github.com/supportiq-platform/supportiq/internal/rubrics"
	"github.com/supportiq-platform/supportiq/internal/server"
	"github.com/supportiq-platform/supportiq/internal/transcription"
	"github.com/supportiq-platform/supportiq/internal/transcripts"
	"github.com/supportiq-platform/supportiq/internal/usage"
	"github.com/supportiq-platform/supportiq/internal/users"
)

const (
	chatSessionTTL      = 2 * time.Hour
	chatMaxHistory      = 40
	authRateLimitReqs   = 10
	authRateLimitWinSec = 60
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it audit events are skipped, everything
	// else keeps working.
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient.JetStream())
	} else {
		slog.Warn("NATS disabled, audit events will not be recorded")
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// LLM provider
	llmClient := llm.NewClient(cfg.OpenAI)

	// Usage ledger
	usageRepo := usage.NewRepository(pool)
	usageSvc := usage.NewService(usageRepo, cfg.Usage)
	if publisher != nil {
		usageSvc.SetAuditPublisher(publisher)
	}
	usageHandler := usage.NewHandler(usageSvc)

	// Transcripts
	transcriptRepo := transcripts.NewRepository(pool)
	transcriptSvc := transcripts.NewService(transcriptRepo, cfg.Encryption.Key)
	transcriptHandler := transcripts.NewHandler(transcriptSvc)

	// Transcription pipeline
	transcriptionSvc := transcription.NewService(llmClient, transcriptSvc, usageSvc)
	transcriptionHandler := transcription.NewHandler(transcriptionSvc)

	// Rubrics
	rubricRepo := rubrics.NewRepository(pool)
	rubricSvc := rubrics.NewService(rubricRepo)
	rubricHandler := rubrics.NewHandler(rubricSvc)

	// Analysis
	analysisRepo := analysis.NewRepository(pool)
	analysisSvc := analysis.NewService(analysisRepo, rubricSvc, llmClient, usageSvc, cfg.OpenAI.ChatModel)
	analysisHandler := analysis.NewHandler(analysisSvc)

	// Roleplay chat
	chatStore := chat.NewSessionStore(redisClient, chatSessionTTL, chatMaxHistory)
	chatSvc := chat.NewService(chatStore, llmClient, usageSvc)
	chatHandler := chat.NewHandler(chatSvc)

	// Audit
	auditRepo := audit.NewRepository(pool)
	if natsClient != nil {
		consumer := audit.NewConsumer(auditRepo, events.NewConsumerManager(natsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Admin console
	adminHandler := admin.NewHandler(userSvc, usageSvc, auditRepo, publisher)

	authLimiter := middleware.NewRateLimiter(redisClient, "auth", authRateLimitReqs, authRateLimitWinSec)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		GetUsage: usageHandler.GetUsage,

		CreateTranscript:    transcriptHandler.Create,
		ListTranscripts:     transcriptHandler.List,
		GetTranscript:       transcriptHandler.Get,
		DeleteTranscript:    transcriptHandler.Delete,
		OwnershipMiddleware: transcriptHandler.OwnershipMiddleware,

		TranscribeAudio: transcriptionHandler.Transcribe,

		RunAnalysis:  analysisHandler.Run,
		ListAnalyses: analysisHandler.List,
		GetAnalysis:  analysisHandler.Get,

		ListRubrics:  rubricHandler.List,
		GetRubric:    rubricHandler.Get,
		CreateRubric: rubricHandler.Create,
		UpdateRubric: rubricHandler.Update,
		DeleteRubric: rubricHandler.Delete,

		StartChatSession: chatHandler.Start,
		SendChatMessage:  chatHandler.Send,
		GetChatSession:   chatHandler.Get,

		AdminListUsers:     adminHandler.ListUsers,
		AdminSetRole:       adminHandler.SetRole,
		AdminListUsage:     adminHandler.ListUsage,
		AdminSetLimit:      adminHandler.SetLimit,
		AdminResetCycle:    adminHandler.ResetCycle,
		AdminToggleSuspend: adminHandler.ToggleSuspend,
		AdminListAudit:     adminHandler.ListAudit,

		AuthMiddleware:    auth.Middleware(authSvc),
		ManagerMiddleware: admin.RequirePermission(users.PermManageRubrics),
		AdminMiddleware:   admin.RequirePermission(users.PermManageUsers),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
