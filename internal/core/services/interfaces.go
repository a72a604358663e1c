package services

import (
	"context"

	"hostelpg/internal/pkg/geofence"
)

// LocationProvider reads the device position.
// Failures are ErrLocationPermissionDenied or ErrLocationHardware.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (geofence.Point, error)
}

// BiometricVerifier prompts the device owner for a biometric confirmation
type BiometricVerifier interface {
	Authenticate(ctx context.Context) (bool, error)
}

// PushMessage is one outbound notification
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushProvider delivers notifications to device tokens
type PushProvider interface {
	Send(ctx context.Context, token string, msg PushMessage) error
	SendBulk(ctx context.Context, tokens []string, msg PushMessage) error
}

// SMSSender delivers OTP codes
type SMSSender interface {
	SendCode(ctx context.Context, phone, code string) error
}
