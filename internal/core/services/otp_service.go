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
	"hostelpg/internal/pkg/phone"
	"hostelpg/internal/pkg/secret"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// OTP Service - phone verification provider
// ============================================================

var (
	ErrOTPNotFound        = errors.New("otp challenge not found, request a new code")
	ErrOTPExpired         = errors.New("otp expired, request a new code")
	ErrOTPTooManyAttempts = errors.New("too many wrong codes, request a new code")
	ErrOTPInvalid         = errors.New("otp code is incorrect")
	ErrOTPCooldown        = errors.New("wait before requesting another code")
)

const otpLength = 6

// OTPOptions tunes challenge lifetime and limits
type OTPOptions struct {
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
	CountryCode string
}

func (o OTPOptions) withDefaults() OTPOptions {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.Cooldown <= 0 {
		o.Cooldown = time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

// otpChallenge is a single pending challenge held in memory
type otpChallenge struct {
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

// AuthenticatedIdentity is the outcome of a confirmed challenge
type AuthenticatedIdentity struct {
	UID   string
	Phone string
}

// OTPService issues and confirms phone challenges and maps phones to stable uids
type OTPService struct {
	identities repositories.AuthIdentityRepository
	sender     SMSSender
	opts       OTPOptions
	logger     *zap.Logger

	mu       sync.Mutex
	store    map[string]*otpChallenge // key = challenge id
	lastSent map[string]time.Time     // key = phone
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewOTPService creates a new OTP service
func NewOTPService(identities repositories.AuthIdentityRepository, sender SMSSender, opts OTPOptions, logger *zap.Logger) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		identities: identities,
		sender:     sender,
		opts:       opts.withDefaults(),
		logger:     logger,
		store:      make(map[string]*otpChallenge),
		lastSent:   make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
}

// StartCleanup removes expired challenges every interval until Stop
func (s *OTPService) StartCleanup(interval time.Duration) {
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
func (s *OTPService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// VerifyPhone sends a code to phoneNumber and returns the challenge id
func (s *OTPService) VerifyPhone(ctx context.Context, phoneNumber string) (string, error) {
	normalized := phone.Normalize(phoneNumber, s.opts.CountryCode)
	if normalized == "" {
		return "", fmt.Errorf("%w: phone number", domain.ErrInvalidInput)
	}

	code, err := secret.GenerateDigits(otpLength)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := secret.HashCode(code)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	s.mu.Lock()
	now := s.now()
	if last, ok := s.lastSent[normalized]; ok && now.Sub(last) < s.opts.Cooldown {
		s.mu.Unlock()
		return "", ErrOTPCooldown
	}
	challengeID := uuid.NewString()
	s.store[challengeID] = &otpChallenge{
		Phone:     normalized,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	s.lastSent[normalized] = now
	s.mu.Unlock()

	if err := s.sender.SendCode(ctx, normalized, code); err != nil {
		s.mu.Lock()
		delete(s.store, challengeID)
		delete(s.lastSent, normalized)
		s.mu.Unlock()
		return "", fmt.Errorf("send otp: %w", err)
	}

	s.logger.Info("otp issued", zap.String("challenge_id", challengeID), zap.String("phone_fp", secret.Fingerprint(normalized)))
	return challengeID, nil
}

// ConfirmCode checks code against the challenge and returns the phone's uid.
// The uid is created on the first successful confirmation of a phone.
func (s *OTPService) ConfirmCode(ctx context.Context, challengeID, code string) (*AuthenticatedIdentity, error) {
	s.mu.Lock()
	entry, ok := s.store[challengeID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrOTPNotFound
	}
	if s.now().After(entry.ExpiresAt) {
		delete(s.store, challengeID)
		s.mu.Unlock()
		return nil, ErrOTPExpired
	}
	if entry.Attempts >= s.opts.MaxAttempts {
		delete(s.store, challengeID)
		s.mu.Unlock()
		return nil, ErrOTPTooManyAttempts
	}
	entry.Attempts++
	if !secret.VerifyCode(code, entry.CodeHash) {
		remaining := s.opts.MaxAttempts - entry.Attempts
		s.mu.Unlock()
		return nil, fmt.Errorf("%w (%d attempts left)", ErrOTPInvalid, remaining)
	}
	delete(s.store, challengeID)
	phoneNumber := entry.Phone
	s.mu.Unlock()

	uid, err := s.uidFor(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	return &AuthenticatedIdentity{UID: uid, Phone: phoneNumber}, nil
}

func (s *OTPService) uidFor(ctx context.Context, phoneNumber string) (string, error) {
	identity, err := s.identities.GetByPhone(ctx, phoneNumber)
	if err == nil {
		return identity.UID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("lookup auth identity: %w", err)
	}

	identity = &models.AuthIdentity{Phone: phoneNumber, UID: uuid.NewString()}
	if err := s.identities.Create(ctx, identity); err != nil {
		// a concurrent confirmation of the same phone may have won
		if existing, getErr := s.identities.GetByPhone(ctx, phoneNumber); getErr == nil {
			return existing.UID, nil
		}
		return "", fmt.Errorf("create auth identity: %w", err)
	}
	return identity.UID, nil
}

func (s *OTPService) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.store {
		if now.After(entry.ExpiresAt) {
			delete(s.store, key)
		}
	}
	for p, sent := range s.lastSent {
		if now.Sub(sent) >= s.opts.Cooldown {
			delete(s.lastSent, p)
		}
	}
}

// LogSMSSender logs codes instead of sending them; dev mode only
type LogSMSSender struct {
	logger *zap.Logger
}

// NewLogSMSSender creates a new log SMS sender
func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendCode(ctx context.Context, phoneNumber, code string) error {
	s.logger.Info("otp code (dev sender)", zap.String("phone", phoneNumber), zap.String("code", code))
	return nil
}
