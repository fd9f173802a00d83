package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supportiq-platform/supportiq/internal/database"
	"github.com/supportiq-platform/supportiq/internal/events"
	mw "github.com/supportiq-platform/supportiq/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Usage ledger
	GetUsage http.HandlerFunc

	// Transcript handlers
	CreateTranscript    http.HandlerFunc
	ListTranscripts     http.HandlerFunc
	GetTranscript       http.HandlerFunc
	DeleteTranscript    http.HandlerFunc
	OwnershipMiddleware func(http.Handler) http.Handler

	// Transcription (audio -> transcript)
	TranscribeAudio http.HandlerFunc

	// Analysis handlers
	RunAnalysis   http.HandlerFunc
	ListAnalyses  http.HandlerFunc
	GetAnalysis   http.HandlerFunc

	// Rubric handlers
	ListRubrics  http.HandlerFunc
	GetRubric    http.HandlerFunc
	CreateRubric http.HandlerFunc
	UpdateRubric http.HandlerFunc
	DeleteRubric http.HandlerFunc

	// Roleplay chat
	StartChatSession http.HandlerFunc
	SendChatMessage  http.HandlerFunc
	GetChatSession   http.HandlerFunc

	// Admin console
	AdminListUsers     http.HandlerFunc
	AdminSetRole       http.HandlerFunc
	AdminListUsage     http.HandlerFunc
	AdminSetLimit      http.HandlerFunc
	AdminResetCycle    http.HandlerFunc
	AdminToggleSuspend http.HandlerFunc
	AdminListAudit     http.HandlerFunc

	// Middleware
	AuthMiddleware    func(http.Handler) http.Handler
	ManagerMiddleware func(http.Handler) http.Handler
	AdminMiddleware   func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe returns 200 with no dependency checks.
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB and NATS.
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes, optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Own credit usage
			r.Get("/usage", h.GetUsage)

			// Transcript routes
			r.Route("/transcripts", func(r chi.Router) {
				r.Post("/", h.CreateTranscript)
				r.Get("/", h.ListTranscripts)

				r.Route("/{transcriptID}", func(r chi.Router) {
					r.Use(h.OwnershipMiddleware)
					r.Get("/", h.GetTranscript)
					r.Delete("/", h.DeleteTranscript)

					// Rubric scoring of this transcript
					r.Route("/analyses", func(r chi.Router) {
						r.Post("/", h.RunAnalysis)
						r.Get("/", h.ListAnalyses)
						r.Get("/{analysisID}", h.GetAnalysis)
					})
				})
			})

			// Audio transcription produces a transcript record
			r.Post("/transcriptions", h.TranscribeAudio)

			// Scoring rubrics; mutations need the manager role
			r.Route("/rubrics", func(r chi.Router) {
				r.Get("/", h.ListRubrics)
				r.Get("/{rubricID}", h.GetRubric)

				r.Group(func(r chi.Router) {
					r.Use(h.ManagerMiddleware)
					r.Post("/", h.CreateRubric)
					r.Put("/{rubricID}", h.UpdateRubric)
					r.Delete("/{rubricID}", h.DeleteRubric)
				})
			})

			// Training roleplay chat
			r.Route("/chat/sessions", func(r chi.Router) {
				r.Post("/", h.StartChatSession)
				r.Get("/{sessionID}", h.GetChatSession)
				r.Post("/{sessionID}/messages", h.SendChatMessage)
			})

			// Admin console
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.AdminMiddleware)
				r.Get("/users", h.AdminListUsers)
				r.Put("/users/{userID}/role", h.AdminSetRole)
				r.Get("/usage", h.AdminListUsage)
				r.Put("/usage/{userID}/limit", h.AdminSetLimit)
				r.Post("/usage/{userID}/reset", h.AdminResetCycle)
				r.Post("/usage/{userID}/suspend", h.AdminToggleSuspend)
				r.Get("/audit", h.AdminListAudit)
			})
		})
	})

	return r
}
