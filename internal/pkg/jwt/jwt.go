package jwt

import (
	"errors"
	"time"

	"hostelpg/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

const issuer = "hostelpg"

// Claims carries a device session
type Claims struct {
	Phone            string `json:"phone,omitempty"`
	Role             string `json:"role,omitempty"`
	HostelID         string `json:"hostel_id,omitempty"`
	ResidentID       string `json:"resident_id,omitempty"`
	LinkedResidentID string `json:"linked_resident_id,omitempty"`
	DeviceID         string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a session for a device.
// sessionID becomes the token id and names the stored device session.
func GenerateSessionToken(sess domain.Session, deviceID, sessionID, secret string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := Claims{
		Phone:            sess.Phone,
		Role:             string(sess.Role),
		HostelID:         sess.HostelID,
		ResidentID:       sess.ResidentID,
		LinkedResidentID: sess.LinkedResidentID,
		DeviceID:         deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   sess.UID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateSessionToken validates a token and returns its claims
func ValidateSessionToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.ID != "" {
		return claims, nil
	}

	return nil, ErrTokenInvalid
}

// Session rebuilds the domain session carried by the claims
func (c *Claims) Session() (domain.Session, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.NewSession(c.Subject, c.Phone, role, c.HostelID, c.ResidentID, c.LinkedResidentID)
}
