package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdentityResolver resolves an authenticated uid to a user record
type IdentityResolver interface {
	Resolve(ctx context.Context, uid, phone string) (*models.User, error)
}

// CodeConfirmer confirms a phone challenge
type CodeConfirmer interface {
	ConfirmCode(ctx context.Context, challengeID, code string) (*AuthenticatedIdentity, error)
}

// AuthService turns a confirmed phone challenge into a device session
type AuthService struct {
	confirmer     CodeConfirmer
	resolver      IdentityResolver
	tracker       *ResolutionTracker
	sessions      repositories.DeviceSessionRepository
	jwtSecret     string
	expiryMinutes int
	logger        *zap.Logger

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewAuthService creates a new auth service
func NewAuthService(
	confirmer CodeConfirmer,
	resolver IdentityResolver,
	tracker *ResolutionTracker,
	sessions repositories.DeviceSessionRepository,
	jwtSecret string,
	expiryMinutes int,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		confirmer:     confirmer,
		resolver:      resolver,
		tracker:       tracker,
		sessions:      sessions,
		jwtSecret:     jwtSecret,
		expiryMinutes: expiryMinutes,
		logger:        logger,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// LoginResult represents a signed-in device
type LoginResult struct {
	Token      string               `json:"token"`
	ExpiresIn  int                  `json:"expires_in"`
	Registered bool                 `json:"registered"`
	User       *models.UserResponse `json:"user,omitempty"`
	Session    domain.Session       `json:"-"`
	SessionID  string               `json:"-"`
}

// Login confirms the challenge, resolves the identity and signs a session for deviceID.
// A login overtaken by a newer login, refresh or logout of the same device fails with ErrStaleResolution.
func (s *AuthService) Login(ctx context.Context, deviceID, challengeID, code string) (*LoginResult, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", domain.ErrInvalidInput)
	}
	seq := s.tracker.Dispatch(deviceID)
	defer s.tracker.Finish(deviceID, seq)

	// 1. Confirm code with the auth provider
	identity, err := s.confirmer.ConfirmCode(ctx, challengeID, code)
	if err != nil {
		return nil, err
	}

	// 2. Resolve the user, migrating a placeholder if needed
	return s.establish(ctx, deviceID, seq, identity.UID, identity.Phone)
}

// Refresh re-resolves the session's user and replaces the device's token
func (s *AuthService) Refresh(ctx context.Context, deviceID string, sess domain.Session) (*LoginResult, error) {
	seq := s.tracker.Dispatch(deviceID)
	defer s.tracker.Finish(deviceID, seq)
	return s.establish(ctx, deviceID, seq, sess.UID, sess.Phone)
}

// Logout revokes the device's sessions and discards resolutions still in flight.
// When a newer login of the device has already been applied, only sessionID is revoked.
func (s *AuthService) Logout(ctx context.Context, deviceID, sessionID string) error {
	seq := s.tracker.Dispatch(deviceID)
	defer s.tracker.Finish(deviceID, seq)

	applied, err := s.tracker.Apply(deviceID, seq, func() error {
		_, err := s.sessions.RevokeByDevice(ctx, deviceID)
		return err
	})
	if err != nil {
		return err
	}
	if !applied {
		return s.sessions.Revoke(ctx, sessionID)
	}
	s.logger.Info("device logged out", zap.String("device_id", deviceID))
	return nil
}

// CheckSession fails with ErrUnauthorized unless sessionID names a live session of deviceID
func (s *AuthService) CheckSession(ctx context.Context, sessionID, deviceID string) error {
	stored, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if stored.DeviceID != deviceID || !stored.Active(s.now()) {
		return domain.ErrUnauthorized
	}
	return nil
}

// StartCleanup deletes expired sessions every interval until Stop
func (s *AuthService) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.cleanup()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup loop
func (s *AuthService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *AuthService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	removed, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn("expired session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Debug("expired sessions removed", zap.Int64("count", removed))
	}
}

func (s *AuthService) establish(ctx context.Context, deviceID string, seq uint64, uid, phoneNumber string) (*LoginResult, error) {
	result := &LoginResult{ExpiresIn: s.expiryMinutes * 60}

	user, err := s.resolver.Resolve(ctx, uid, phoneNumber)
	switch {
	case err == nil:
		sess, err := user.Session()
		if err != nil {
			return nil, &domain.IdentityResolutionError{UID: uid, Err: err}
		}
		result.Session = sess
		result.User = user.ToResponse()
		result.Registered = true
	case errors.Is(err, domain.ErrUserNotFound):
		// authenticated but unknown: may only register a hostel
		sess, err := domain.NewSession(uid, phoneNumber, "", "", "", "")
		if err != nil {
			return nil, err
		}
		result.Session = sess
	default:
		return nil, err
	}

	// 3. Apply only if no newer resolution was dispatched for the device
	expiresAt := s.now().Add(time.Duration(s.expiryMinutes) * time.Minute)
	stored := &models.DeviceSession{
		ID:        uuid.NewString(),
		UID:       result.Session.UID,
		DeviceID:  deviceID,
		ExpiresAt: expiresAt,
	}
	applied, err := s.tracker.Apply(deviceID, seq, func() error {
		if _, err := s.sessions.RevokeByDevice(ctx, deviceID); err != nil {
			return err
		}
		return s.sessions.Create(ctx, stored)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Info("stale identity resolution discarded", zap.String("device_id", deviceID), zap.Uint64("seq", seq))
		return nil, domain.ErrStaleResolution
	}

	// 4. Sign
	token, err := jwt.GenerateSessionToken(result.Session, deviceID, stored.ID, s.jwtSecret, expiresAt)
	if err != nil {
		return nil, err
	}
	result.Token = token
	result.SessionID = stored.ID
	return result, nil
}
