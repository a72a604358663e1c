package middleware

import (
	"context"
	"errors"
	"strings"

	"hostelpg/internal/config"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/jwt"
	"hostelpg/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by AuthMiddleware
const (
	SessionKey   = "session"
	DeviceKey    = "deviceID"
	SessionIDKey = "sessionID"
)

// SessionChecker confirms a signed token still names a live device session
type SessionChecker interface {
	CheckSession(ctx context.Context, sessionID, deviceID string) error
}

// AuthMiddleware creates authentication middleware
func AuthMiddleware(cfg *config.Config, sessions SessionChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Bearer token from the Authorization header
		accessToken := bearerToken(c)

		// 2. SSE clients cannot set headers; allow ?token= on GET only
		if accessToken == "" && c.Method() == fiber.MethodGet {
			accessToken = c.Query("token")
		}

		// 3. No token found
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 4. Validate token
		claims, err := jwt.ValidateSessionToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		// 5. Reject revoked sessions (logout, replaced by a newer login)
		if err := sessions.CheckSession(c.Context(), claims.ID, claims.DeviceID); err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return response.Unauthorized(c, "Session has ended, sign in again")
			}
			return response.ServiceUnavailable(c, "Session check failed")
		}

		// 6. Rebuild the session
		sess, err := claims.Session()
		if err != nil {
			return response.Unauthorized(c, "Invalid session")
		}

		c.Locals(SessionKey, sess)
		c.Locals(DeviceKey, claims.DeviceID)
		c.Locals(SessionIDKey, claims.ID)

		return c.Next()
	}
}

// RequireRoles creates role-based authorization middleware
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := CurrentSession(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, role := range allowed {
			if sess.Role == role {
				return c.Next()
			}
		}

		if sess.Role == "" {
			return response.Forbidden(c, "Register or join a hostel first")
		}
		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AnyMember allows every role of a hostel
func AnyMember() fiber.Handler {
	return RequireRoles(domain.RoleAdmin, domain.RoleResident, domain.RoleGuardian)
}

// AdminOnly allows only hostel admins
func AdminOnly() fiber.Handler {
	return RequireRoles(domain.RoleAdmin)
}

// ResidentOnly allows only residents
func ResidentOnly() fiber.Handler {
	return RequireRoles(domain.RoleResident)
}

// CurrentSession returns the session stored by AuthMiddleware
func CurrentSession(c *fiber.Ctx) (domain.Session, bool) {
	sess, ok := c.Locals(SessionKey).(domain.Session)
	return sess, ok
}

// CurrentDevice returns the device id of the session token
func CurrentDevice(c *fiber.Ctx) string {
	device, _ := c.Locals(DeviceKey).(string)
	return device
}

// CurrentSessionID returns the id of the device session behind the token
func CurrentSessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(SessionIDKey).(string)
	return id
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
