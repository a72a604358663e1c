package repositories

import (
	"context"

	"hostelpg/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// hostelRepository implements HostelRepository interface
type hostelRepository struct {
	db *gorm.DB
}

// NewHostelRepository creates a new hostel repository
func NewHostelRepository(db *gorm.DB) HostelRepository {
	return &hostelRepository{db: db}
}

func (r *hostelRepository) Create(ctx context.Context, hostel *models.Hostel) error {
	return r.db.WithContext(ctx).Create(hostel).Error
}

func (r *hostelRepository) GetByID(ctx context.Context, id string) (*models.Hostel, error) {
	var hostel models.Hostel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&hostel).Error; err != nil {
		return nil, notFound(err)
	}
	return &hostel, nil
}

func (r *hostelRepository) List(ctx context.Context) ([]*models.Hostel, error) {
	var hostels []*models.Hostel
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&hostels).Error
	return hostels, err
}

// authIdentityRepository implements AuthIdentityRepository interface
type authIdentityRepository struct {
	db *gorm.DB
}

// NewAuthIdentityRepository creates a new auth identity repository
func NewAuthIdentityRepository(db *gorm.DB) AuthIdentityRepository {
	return &authIdentityRepository{db: db}
}

func (r *authIdentityRepository) GetByPhone(ctx context.Context, phone string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&identity).Error; err != nil {
		return nil, notFound(err)
	}
	return &identity, nil
}

func (r *authIdentityRepository) Create(ctx context.Context, identity *models.AuthIdentity) error {
	return r.db.WithContext(ctx).Create(identity).Error
}
