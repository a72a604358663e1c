package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/phone"
	"hostelpg/internal/pkg/secret"

	"go.uber.org/zap"
)

// ============================================================
// Identity resolution
// ============================================================

// IdentityService resolves an authenticated uid to its canonical user record,
// migrating placeholder records created by an admin on first login.
type IdentityService struct {
	users       repositories.UserRepository
	countryCode string
	logger      *zap.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(users repositories.UserRepository, countryCode string, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{users: users, countryCode: countryCode, logger: logger}
}

// Resolve returns the user keyed by uid. When none exists and phoneNumber is
// given, a user stored under that phone (or one of its alternate forms) is
// re-keyed to uid.
func (s *IdentityService) Resolve(ctx context.Context, uid, phoneNumber string) (*models.User, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, uid)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.IdentityResolutionError{UID: uid, Err: err}
	}
	if phoneNumber == "" {
		return nil, domain.ErrUserNotFound
	}

	placeholder, err := s.users.FindByPhone(ctx, phoneNumber)
	if errors.Is(err, domain.ErrNotFound) {
		placeholder, err = s.users.FindByPhones(ctx, phone.Variants(phoneNumber, s.countryCode))
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, &domain.IdentityResolutionError{UID: uid, Err: err}
	}

	return s.migrate(ctx, uid, placeholder)
}

// migrate copies placeholder under uid, then removes the placeholder.
// A failed removal is logged; the migrated record stands.
func (s *IdentityService) migrate(ctx context.Context, uid string, placeholder *models.User) (*models.User, error) {
	migrated := *placeholder
	migrated.ID = uid
	if err := s.users.Create(ctx, &migrated); err != nil {
		return nil, &domain.IdentityResolutionError{UID: uid, Err: fmt.Errorf("migrate %s: %w", placeholder.ID, err)}
	}

	if placeholder.ID != uid {
		if err := s.users.Delete(ctx, placeholder.ID); err != nil {
			s.logger.Warn("placeholder cleanup failed",
				zap.String("placeholder_id", placeholder.ID),
				zap.String("uid", uid),
				zap.Error(err))
		}
	}

	s.logger.Info("placeholder migrated",
		zap.String("placeholder_id", placeholder.ID),
		zap.String("uid", uid),
		zap.String("role", string(migrated.Role)),
		zap.String("phone_fp", secret.Fingerprint(migrated.Phone)))
	return &migrated, nil
}

// ============================================================
// Resolution tracker
// ============================================================

const trackerStripes = 64

type deviceResolution struct {
	dispatched uint64
	inflight   int
}

// ResolutionTracker orders identity resolutions per device.
// The most recently dispatched resolution wins regardless of completion order.
// A device is tracked only while it has resolutions in flight.
type ResolutionTracker struct {
	mu      sync.Mutex
	seq     uint64
	devices map[string]*deviceResolution
	stripes [trackerStripes]sync.Mutex
}

// NewResolutionTracker creates a new resolution tracker
func NewResolutionTracker() *ResolutionTracker {
	return &ResolutionTracker{devices: make(map[string]*deviceResolution)}
}

// Dispatch starts a resolution for device and returns its sequence number.
// Every Dispatch must be paired with Finish.
func (t *ResolutionTracker) Dispatch(device string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	d, ok := t.devices[device]
	if !ok {
		d = &deviceResolution{}
		t.devices[device] = d
	}
	d.dispatched = t.seq
	d.inflight++
	return t.seq
}

// Finish ends a dispatched resolution
func (t *ResolutionTracker) Finish(device string, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[device]
	if !ok {
		return
	}
	d.inflight--
	if d.inflight <= 0 {
		delete(t.devices, device)
	}
}

// Latest reports whether seq is still the newest dispatch for device
func (t *ResolutionTracker) Latest(device string, seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[device]
	return ok && d.dispatched == seq
}

// Apply runs apply when seq is still the newest dispatch for device and
// reports whether it ran. Applies of one device never overlap.
func (t *ResolutionTracker) Apply(device string, seq uint64, apply func() error) (bool, error) {
	stripe := t.stripe(device)
	stripe.Lock()
	defer stripe.Unlock()

	if !t.Latest(device, seq) {
		return false, nil
	}
	if err := apply(); err != nil {
		return false, err
	}
	return true, nil
}

// tracked returns the number of devices with resolutions in flight
func (t *ResolutionTracker) tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.devices)
}

func (t *ResolutionTracker) stripe(device string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(device))
	return &t.stripes[h.Sum32()%trackerStripes]
}
