package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/meetsweeper/internal/helpers"
)

var testKey = []byte("jwt-test-secret")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hmacVerifier() *helpers.TokenVerifier {
	return helpers.NewKeyfuncVerifier(func(token *jwt.Token) (interface{}, error) {
		return testKey, nil
	})
}

func signToken(t *testing.T, role string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &helpers.CustomClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func newAuthRouter(cfg SchedulerAuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(SchedulerAuth(cfg, discardLogger()))
	r.POST("/job", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"via": c.GetString("scheduler_auth")})
	})
	return r
}

func doAuth(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/job", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSchedulerAuthCronSecret(t *testing.T) {
	r := newAuthRouter(SchedulerAuthConfig{CronSecret: "s3cret"})

	if w := doAuth(r, "Bearer s3cret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with the right secret, got %d", w.Code)
	}
	if w := doAuth(r, "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a wrong secret, got %d", w.Code)
	}
	if w := doAuth(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a header, got %d", w.Code)
	}
	if w := doAuth(r, "Basic s3cret"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a non-bearer scheme, got %d", w.Code)
	}
}

func TestSchedulerAuthServiceRoleJWT(t *testing.T) {
	r := newAuthRouter(SchedulerAuthConfig{Verifier: hmacVerifier()})
	future := time.Now().Add(time.Hour)

	w := doAuth(r, "Bearer "+signToken(t, helpers.RoleServiceRole, future))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for service_role token, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["via"] != "jwt" {
		t.Errorf("expected jwt auth, got %q", body["via"])
	}

	if w := doAuth(r, "Bearer "+signToken(t, "authenticated", future)); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a user token, got %d", w.Code)
	}
	if w := doAuth(r, "Bearer "+signToken(t, helpers.RoleServiceRole, time.Now().Add(-time.Hour))); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for an expired token, got %d", w.Code)
	}
}

func TestSchedulerAuthUnconfigured(t *testing.T) {
	open := newAuthRouter(SchedulerAuthConfig{AllowUnauthenticated: true})
	if w := doAuth(open, ""); w.Code != http.StatusOK {
		t.Errorf("expected open endpoint outside production, got %d", w.Code)
	}

	closed := newAuthRouter(SchedulerAuthConfig{})
	if w := doAuth(closed, "Bearer anything"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 when nothing is configured in production, got %d", w.Code)
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(discardLogger()))
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["success"] != false || body["error"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}
}
