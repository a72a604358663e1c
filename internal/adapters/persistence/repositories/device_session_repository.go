package repositories

import (
	"context"
	"time"

	"hostelpg/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// deviceSessionRepository implements DeviceSessionRepository interface
type deviceSessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDeviceSessionRepository creates a new device session repository
func NewDeviceSessionRepository(db *gorm.DB) DeviceSessionRepository {
	return &deviceSessionRepository{db: db, now: time.Now}
}

// Create stores a newly issued session
func (r *deviceSessionRepository) Create(ctx context.Context, session *models.DeviceSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID gets a session by its token id, revoked or not
func (r *deviceSessionRepository) GetByID(ctx context.Context, id string) (*models.DeviceSession, error) {
	var session models.DeviceSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// RevokeByDevice revokes every live session of a device
func (r *deviceSessionRepository) RevokeByDevice(ctx context.Context, deviceID string) (int64, error) {
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("device_id = ?", deviceID).
		Where("revoked_at IS NULL").
		Update("revoked_at", &now)
	return result.RowsAffected, result.Error
}

// Revoke revokes one session
func (r *deviceSessionRepository) Revoke(ctx context.Context, id string) error {
	now := r.now()
	return r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
		Update("revoked_at", &now).Error
}

// DeleteExpired deletes sessions that expired before the given time (cleanup job)
func (r *deviceSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.DeviceSession{})
	return result.RowsAffected, result.Error
}
