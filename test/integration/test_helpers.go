//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/config"
	"go-contacts-api/internal/database"
	"go-contacts-api/internal/handler"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/repository"
	"go-contacts-api/internal/router"
	"go-contacts-api/internal/service"
)

// newTestDB connects to TEST_DB_URL, applies migrations and empties every
// table. Tests are skipped when the variable is unset.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("TEST_DB_URL"))
	if url == "" {
		t.Skip("TEST_DB_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, database.Options{URL: url, MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))

	_, err = db.Pool.Exec(ctx, `TRUNCATE audit_entries, contacts, accounts RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}

type linkRecorder struct {
	mu    sync.Mutex
	links map[string]string
}

func (r *linkRecorder) SendConfirmationEmail(address string, _ string, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[address] = link
}

func (r *linkRecorder) path(t *testing.T, address string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[address]
	require.True(t, ok, "no confirmation link for %s", address)
	return link[strings.Index(link, "/api/"):]
}

type testServer struct {
	*httptest.Server
	links *linkRecorder
}

func newTestServer(t *testing.T, db *database.DB) *testServer {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:   10 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     "integration-secret",
		Algorithm:  "HS256",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		VerifyTTL:  time.Hour,
	})
	require.NoError(t, err)

	links := &linkRecorder{links: map[string]string{}}
	m := metrics.New()
	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool), m)
	authService := service.NewAuthService(repository.NewAccountRepository(db.Pool), auth.NewPasswordHasher(4), tokens, links, auditService, "http://integration.test")
	contactService := service.NewContactService(repository.NewContactRepository(db.Pool), 7)

	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(authService), nil, m, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Contacts: handler.NewContactHandler(contactService, handler.ListLimits{Default: 10, Min: 10, Max: 500}),
		Health:   handler.NewHealthHandler(db),
	}))
	t.Cleanup(server.Close)

	return &testServer{Server: server, links: links}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func (s *testServer) call(t *testing.T, method string, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}

	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) register(t *testing.T, email string) model.TokenPair {
	t.Helper()

	status, _ := s.call(t, http.MethodPost, "/api/auth/signup", model.SignupRequest{Username: "user", Email: email, Password: "secret123"}, "")
	require.Equal(t, http.StatusCreated, status)

	status, _ = s.call(t, http.MethodGet, s.links.path(t, email), nil, "")
	require.Equal(t, http.StatusOK, status)

	status, env := s.call(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: email, Password: "secret123"}, "")
	require.Equal(t, http.StatusOK, status)
	return decode[model.TokenPair](t, env)
}
