package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"

	"go.uber.org/zap"
)

// capturingSMS keeps the last code per phone
type capturingSMS struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (s *capturingSMS) SendCode(ctx context.Context, phone, code string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

func newOTPFixture(t *testing.T) (*OTPService, *capturingSMS, *time.Time) {
	t.Helper()
	db := setupTestDB(t)
	sms := &capturingSMS{codes: map[string]string{}}
	svc := NewOTPService(repositories.NewAuthIdentityRepository(db), sms, OTPOptions{CountryCode: "91"}, zap.NewNop())
	now := time.Date(2024, 10, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, sms, &now
}

func TestOTP_VerifyAndConfirm(t *testing.T) {
	svc, sms, now := newOTPFixture(t)
	ctx := context.Background()

	challenge, err := svc.VerifyPhone(ctx, "98765 43210")
	if err != nil {
		t.Fatalf("verify phone: %v", err)
	}
	code := sms.codes["+919876543210"]
	if len(code) != 6 {
		t.Fatalf("code = %q", code)
	}

	identity, err := svc.ConfirmCode(ctx, challenge, code)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if identity.Phone != "+919876543210" || identity.UID == "" {
		t.Errorf("identity = %+v", identity)
	}

	if _, err := svc.ConfirmCode(ctx, challenge, code); !errors.Is(err, ErrOTPNotFound) {
		t.Errorf("reuse: expected ErrOTPNotFound, got %v", err)
	}

	// the same phone keeps its uid
	*now = now.Add(2 * time.Minute)
	challenge, err = svc.VerifyPhone(ctx, "+919876543210")
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	again, err := svc.ConfirmCode(ctx, challenge, sms.codes["+919876543210"])
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if again.UID != identity.UID {
		t.Errorf("uid changed: %s -> %s", identity.UID, again.UID)
	}
}

func TestOTP_Limits(t *testing.T) {
	svc, sms, now := newOTPFixture(t)
	ctx := context.Background()

	challenge, err := svc.VerifyPhone(ctx, "+911111111111")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := svc.VerifyPhone(ctx, "+911111111111"); !errors.Is(err, ErrOTPCooldown) {
		t.Errorf("resend: expected ErrOTPCooldown, got %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.ConfirmCode(ctx, challenge, "not-it"); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i, err)
		}
	}
	if _, err := svc.ConfirmCode(ctx, challenge, sms.codes["+911111111111"]); !errors.Is(err, ErrOTPTooManyAttempts) {
		t.Errorf("after 5 misses: expected ErrOTPTooManyAttempts, got %v", err)
	}

	*now = now.Add(time.Minute)
	challenge, err = svc.VerifyPhone(ctx, "+911111111111")
	if err != nil {
		t.Fatalf("verify after cooldown: %v", err)
	}
	*now = now.Add(6 * time.Minute)
	if _, err := svc.ConfirmCode(ctx, challenge, sms.codes["+911111111111"]); !errors.Is(err, ErrOTPExpired) {
		t.Errorf("late confirm: expected ErrOTPExpired, got %v", err)
	}

	if _, err := svc.VerifyPhone(ctx, "call me"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("garbage phone: expected ErrInvalidInput, got %v", err)
	}
}

func TestOTP_SendFailureAllowsRetry(t *testing.T) {
	svc, sms, _ := newOTPFixture(t)
	ctx := context.Background()

	sms.err = errors.New("gateway down")
	if _, err := svc.VerifyPhone(ctx, "+912222222222"); err == nil {
		t.Fatal("expected send error")
	}
	sms.err = nil
	if _, err := svc.VerifyPhone(ctx, "+912222222222"); err != nil {
		t.Errorf("retry after failed send: %v", err)
	}
}

func TestOTP_Cleanup(t *testing.T) {
	svc, _, now := newOTPFixture(t)
	if _, err := svc.VerifyPhone(context.Background(), "+913333333333"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	*now = now.Add(10 * time.Minute)
	svc.cleanup()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.store) != 0 || len(svc.lastSent) != 0 {
		t.Errorf("cleanup left %d challenges, %d cooldowns", len(svc.store), len(svc.lastSent))
	}
}
