package repositories

import (
	"context"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/core/domain"
)

// ScopedStore defines the tenant-partitioned store interface
type ScopedStore[P any] interface {
	Create(ctx context.Context, scope domain.Scope, entity P) error
	Get(ctx context.Context, scope domain.Scope, id string) (P, error)
	Find(ctx context.Context, scope domain.Scope, q Query) ([]P, error)
	Count(ctx context.Context, scope domain.Scope, filters ...Filter) (int64, error)
	Update(ctx context.Context, scope domain.Scope, id string, patch map[string]interface{}) error
	CompareAndUpdate(ctx context.Context, scope domain.Scope, id string, expect, patch map[string]interface{}) (bool, error)
	Delete(ctx context.Context, scope domain.Scope, id string) error
	Subscribe(ctx context.Context, scope domain.Scope, q Query) (<-chan []P, error)
}

type (
	ResidentRepository   = ScopedStore[*models.Resident]
	LeaveRepository      = ScopedStore[*models.LeaveRequest]
	AttendanceRepository = ScopedStore[*models.AttendanceRecord]
	MovementRepository   = ScopedStore[*models.EntryExitLog]
	ComplaintRepository  = ScopedStore[*models.Complaint]
	BroadcastRepository  = ScopedStore[*models.Broadcast]
)

// UserRepository defines user repository interface.
// Users are identity records; hostel-bound listings take a scope.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByPhones(ctx context.Context, phones []string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	UpdatePushToken(ctx context.Context, id, token string) error
	ListByRole(ctx context.Context, scope domain.Scope, roles ...domain.Role) ([]*models.User, error)
	ListGuardians(ctx context.Context, scope domain.Scope, residentID string) ([]*models.User, error)
	GetByResidentID(ctx context.Context, scope domain.Scope, residentID string) (*models.User, error)
}

// HostelRepository defines hostel repository interface
type HostelRepository interface {
	Create(ctx context.Context, hostel *models.Hostel) error
	GetByID(ctx context.Context, id string) (*models.Hostel, error)
	List(ctx context.Context) ([]*models.Hostel, error)
}

// AuthIdentityRepository defines the phone to uid mapping of the auth provider
type AuthIdentityRepository interface {
	GetByPhone(ctx context.Context, phone string) (*models.AuthIdentity, error)
	Create(ctx context.Context, identity *models.AuthIdentity) error
}

// DeviceSessionRepository defines the store of issued session tokens
type DeviceSessionRepository interface {
	Create(ctx context.Context, session *models.DeviceSession) error
	GetByID(ctx context.Context, id string) (*models.DeviceSession, error)
	RevokeByDevice(ctx context.Context, deviceID string) (int64, error)
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
