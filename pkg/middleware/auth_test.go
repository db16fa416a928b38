package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := IssueSessionToken("admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := ValidateSessionToken(token, secret)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("username: got %q", claims.Username)
	}
}

func TestValidateSessionTokenRejections(t *testing.T) {
	secret := []byte("test-secret")

	expired, err := IssueSessionToken("admin", secret, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	wrongKey, err := IssueSessionToken("admin", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired token", expired},
		{"wrong signing key", wrongKey},
		{"garbage", "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateSessionToken(tt.token, secret); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}

func newAuthTestRouter(secret []byte, enabled bool) *gin.Engine {
	r := gin.New()
	r.Use(SessionAuthMiddleware(secret, func() bool { return enabled }))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("username")})
	})
	return r
}

func TestSessionAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueSessionToken("admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	tests := []struct {
		name       string
		enabled    bool
		header     string
		wantStatus int
	}{
		{"auth disabled passes without header", false, "", http.StatusOK},
		{"missing header", true, "", http.StatusUnauthorized},
		{"malformed header", true, "Token abc", http.StatusUnauthorized},
		{"invalid token", true, "Bearer bogus", http.StatusUnauthorized},
		{"valid token", true, "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthTestRouter(secret, tt.enabled)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status: expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}
