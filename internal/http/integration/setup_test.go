package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/zest/productapi/internal/app"
	"github.com/zest/productapi/internal/config"
)

const seedYAML = `
users:
  - username: root
    email: root@example.com
    password: rootpass
    roles: [ADMIN, USER]
`

func testConfig(t *testing.T) config.Config {
	t.Helper()

	seedPath := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(seedPath, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	return config.Config{
		Env:                 "test",
		Storage:             config.StorageMemory,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
		BcryptCost:          4,
		MaxPageSize:         100,
		AccessLogBuffer:     64,
		SeedUsersPath:       seedPath,
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := app.New(context.Background(), testConfig(t), logger)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	t.Cleanup(func() {
		cancel()
		a.Close()
	})

	return a.Router
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: response is not JSON: %v body=%s", method, path, err, w.Body.String())
		}
	}

	return w, env
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(env.Data))
	}
}

func register(t *testing.T, r http.Handler, username, email, password string) tokenPair {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": password,
	})
	mustStatus(t, w, http.StatusOK)

	var pair tokenPair
	decodeData(t, env, &pair)
	return pair
}

func login(t *testing.T, r http.Handler, username, password string) tokenPair {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	mustStatus(t, w, http.StatusOK)

	var pair tokenPair
	decodeData(t, env, &pair)
	return pair
}
