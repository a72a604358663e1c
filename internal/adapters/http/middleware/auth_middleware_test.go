package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hostelpg/internal/config"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// liveSessions treats every session id as live except the listed ones
type liveSessions struct {
	revoked map[string]bool
	err     error
}

func (l liveSessions) CheckSession(ctx context.Context, sessionID, deviceID string) error {
	if l.err != nil {
		return l.err
	}
	if l.revoked[sessionID] {
		return domain.ErrUnauthorized
	}
	return nil
}

func newProtectedApp(cfg *config.Config, sessions SessionChecker, roles ...domain.Role) *fiber.App {
	app := fiber.New()
	app.Get("/", AuthMiddleware(cfg, sessions), RequireRoles(roles...), func(c *fiber.Ctx) error {
		sess, _ := CurrentSession(c)
		return c.SendString(sess.UID + "@" + CurrentDevice(c))
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "secret"}}
	admin, _ := domain.NewSession("u1", "+911", domain.RoleAdmin, "h1", "", "")
	resident, _ := domain.NewSession("u2", "+912", domain.RoleResident, "h1", "r1", "")
	unassigned, _ := domain.NewSession("u3", "+913", "", "", "", "")

	expires := time.Now().Add(5 * time.Minute)
	sign := func(s domain.Session, sessionID string) string {
		tok, err := jwt.GenerateSessionToken(s, "dev-1", sessionID, cfg.JWT.Secret, expires)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}
	foreign, _ := jwt.GenerateSessionToken(admin, "dev-1", "s1", "other-secret", expires)

	tests := []struct {
		name   string
		token  string
		query  bool
		status int
	}{
		{"admin", sign(admin, "s1"), false, http.StatusOK},
		{"admin via query", sign(admin, "s1"), true, http.StatusOK},
		{"revoked session", sign(admin, "logged-out"), false, http.StatusUnauthorized},
		{"resident on admin route", sign(resident, "s2"), false, http.StatusForbidden},
		{"no hostel", sign(unassigned, "s3"), false, http.StatusForbidden},
		{"foreign signature", foreign, false, http.StatusUnauthorized},
		{"missing", "", false, http.StatusUnauthorized},
	}

	app := newProtectedApp(cfg, liveSessions{revoked: map[string]bool{"logged-out": true}}, domain.RoleAdmin)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/"
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.query {
				req = httptest.NewRequest(http.MethodGet, "/?token="+tt.token, nil)
			} else if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestAuthMiddleware_SessionStoreDown(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "secret"}}
	admin, _ := domain.NewSession("u1", "+911", domain.RoleAdmin, "h1", "", "")
	token, _ := jwt.GenerateSessionToken(admin, "dev-1", "s1", cfg.JWT.Secret, time.Now().Add(time.Minute))

	app := newProtectedApp(cfg, liveSessions{err: errors.New("db down")}, domain.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
