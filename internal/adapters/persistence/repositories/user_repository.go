package repositories

import (
	"context"
	"errors"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/core/domain"

	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID gets a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByPhone gets the oldest user stored under exactly this phone
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("phone = ?", phone).Order("created_at ASC").First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByPhones gets the oldest user stored under any of the phones
func (r *userRepository) FindByPhones(ctx context.Context, phones []string) (*models.User, error) {
	if len(phones) == 0 {
		return nil, domain.ErrNotFound
	}
	var user models.User
	err := r.db.WithContext(ctx).Where("phone IN ?", phones).Order("created_at ASC").First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Update updates a user
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// Delete hard deletes a user
func (r *userRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExistsByPhone checks if phone exists
func (r *userRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error
	return count > 0, err
}

// UpdatePushToken sets the delivery address of a user
func (r *userRepository) UpdatePushToken(ctx context.Context, id, token string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("push_token", token)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByRole lists the hostel's users holding any of roles
func (r *userRepository) ListByRole(ctx context.Context, scope domain.Scope, roles ...domain.Role) ([]*models.User, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("hostel_id = ? AND role IN ?", scope.HostelID(), roles).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

// ListGuardians lists guardians linked to a resident of the hostel
func (r *userRepository) ListGuardians(ctx context.Context, scope domain.Scope, residentID string) ([]*models.User, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("hostel_id = ? AND role = ? AND linked_resident_id = ?", scope.HostelID(), domain.RoleGuardian, residentID).
		Find(&users).Error
	return users, err
}

// GetByResidentID gets the resident user of a resident profile
func (r *userRepository) GetByResidentID(ctx context.Context, scope domain.Scope, residentID string) (*models.User, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var user models.User
	err := r.db.WithContext(ctx).
		Where("hostel_id = ? AND role = ? AND resident_id = ?", scope.HostelID(), domain.RoleResident, residentID).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
