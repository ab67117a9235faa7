package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/http/handlers"
	"github.com/zest/productapi/internal/http/middlewares"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

var alice = auth.Principal{UserID: 1, Username: "alice", Roles: []string{"USER"}}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

// setupAuthedRouter stashes a principal on the context the way RequireAuth does.
func setupAuthedRouter(method, path string, p auth.Principal, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, func(c *gin.Context) {
		c.Set(middlewares.CtxPrincipal, p)
		c.Next()
	}, h)

	return r
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Errors  []handlers.FieldError `json:"errors"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v body=%s", err, w.Body.String())
	}
	return env
}
