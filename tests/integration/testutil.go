//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/supportiq-platform/supportiq/internal/admin"
	"github.com/supportiq-platform/supportiq/internal/analysis"
	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/audit"
	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/chat"
	"github.com/supportiq-platform/supportiq/internal/config"
	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/rubrics"
	"github.com/supportiq-platform/supportiq/internal/transcription"
	"github.com/supportiq-platform/supportiq/internal/transcripts"
	"github.com/supportiq-platform/supportiq/internal/usage"
	"github.com/supportiq-platform/supportiq/internal/users"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	UserSvc     *users.Service
	UsageSvc    *usage.Service
}

var testEnv *TestEnv

// stubLLM stands in for the OpenAI client so metered flows run without
// a provider. The scoring reply matches the seeded default rubric.
type stubLLM struct{}

func (stubLLM) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return "I understand, but I still have not received my refund.", nil
}

func (stubLLM) CompleteJSON(ctx context.Context, messages []llm.Message) (string, error) {
	return `{
		"criteria": [
			{"name": "Empathy", "score": 80, "comment": "Acknowledged frustration early."},
			{"name": "Problem Resolution", "score": 70, "comment": "Resolved, but needed two attempts."},
			{"name": "Communication Clarity", "score": 90, "comment": "Plain language throughout."},
			{"name": "Professionalism", "score": 85, "comment": "Courteous under pressure."}
		],
		"summary": "Solid handling of a refund complaint.",
		"coaching_notes": "Confirm the resolution before closing."
	}`, nil
}

func (stubLLM) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	return "Hello, thank you for calling support. How can I help you today?", nil
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "supportiq_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/supportiq_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	migrationsPath := getMigrationsPath()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services
	encryptionKey := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-long!!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	usageRepo := usage.NewRepository(pool)
	usageSvc := usage.NewService(usageRepo, config.UsageConfig{
		DefaultMonthlyLimit: 1000,
		AnalysisCost:        10,
		TranscriptionCost:   5,
		ChatMessageCost:     1,
		StoreTimeout:        5 * time.Second,
	})
	usageHandler := usage.NewHandler(usageSvc)

	transcriptRepo := transcripts.NewRepository(pool)
	transcriptSvc := transcripts.NewService(transcriptRepo, encryptionKey)
	transcriptHandler := transcripts.NewHandler(transcriptSvc)

	model := stubLLM{}

	transcriptionSvc := transcription.NewService(model, transcriptSvc, usageSvc)
	transcriptionHandler := transcription.NewHandler(transcriptionSvc)

	rubricRepo := rubrics.NewRepository(pool)
	rubricSvc := rubrics.NewService(rubricRepo)
	rubricHandler := rubrics.NewHandler(rubricSvc)

	analysisRepo := analysis.NewRepository(pool)
	analysisSvc := analysis.NewService(analysisRepo, rubricSvc, model, usageSvc, "stub-model")
	analysisHandler := analysis.NewHandler(analysisSvc)

	chatStore := chat.NewSessionStore(redisClient, 2*time.Hour, 40)
	chatSvc := chat.NewService(chatStore, model, usageSvc)
	chatHandler := chat.NewHandler(chatSvc)

	auditRepo := audit.NewRepository(pool)
	adminHandler := admin.NewHandler(userSvc, usageSvc, auditRepo, nil)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
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

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		AuthSvc:     authSvc,
		UserSvc:     userSvc,
		UsageSvc:    usageSvc,
	}

	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

// PromoteUser bumps a user's role directly in the store. The caller must
// log in again afterwards because the role rides in the access token.
func PromoteUser(t *testing.T, env *TestEnv, email, role string) {
	t.Helper()
	_, err := env.Pool.Exec(context.Background(),
		`UPDATE users SET role = $1 WHERE email = $2`, role, email)
	if err != nil {
		t.Fatalf("promoting user: %v", err)
	}
}

func CreateTranscript(t *testing.T, env *TestEnv, token, title, content string) string {
	t.Helper()
	body := map[string]any{"title": title, "channel": "chat", "content": content}
	resp := DoRequest(t, env, "POST", "/api/v1/transcripts", body, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating transcript failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["id"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
