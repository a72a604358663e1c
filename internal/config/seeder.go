package config

import (
	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/phone"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Demo hostel seeded in dev mode
const (
	demoHostelID   = "demo-hostel"
	demoHostelName = "Demo PG"
	demoLatitude   = 12.9716
	demoLongitude  = 77.5946
)

// Seeder handles database seeding
type Seeder struct {
	db     *gorm.DB
	cfg    *Config
	logger *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config, logger *zap.Logger) *Seeder {
	return &Seeder{db: db, cfg: cfg, logger: logger}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	if !s.cfg.IsDev() {
		return nil
	}
	if err := s.seedDemoHostel(); err != nil {
		s.logger.Warn("demo hostel seeder skipped", zap.Error(err))
	}
	return nil
}

// seedDemoHostel creates a demo hostel whose admin is a placeholder
// keyed by DEV_SEED_ADMIN_PHONE; the first OTP login with that phone claims it.
// This is for development only.
func (s *Seeder) seedDemoHostel() error {
	adminPhone := phone.Normalize(s.cfg.Seed.AdminPhone, s.cfg.Phone.CountryCode)
	if adminPhone == "" {
		return nil
	}

	// 1. Skip if the phone already has a user
	var count int64
	if err := s.db.Model(&models.User{}).Where("phone = ?", adminPhone).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// 2. Hostel
		hostel := &models.Hostel{
			ID:        demoHostelID,
			Name:      demoHostelName,
			Latitude:  demoLatitude,
			Longitude: demoLongitude,
			Occupancy: 40,
		}
		if err := tx.FirstOrCreate(hostel, models.Hostel{ID: demoHostelID}).Error; err != nil {
			return err
		}

		// 3. Placeholder admin
		admin := &models.User{
			ID:       "placeholder-" + uuid.NewString(),
			Name:     "Demo Admin",
			Phone:    adminPhone,
			Role:     domain.RoleAdmin,
			HostelID: hostel.ID,
		}
		if err := tx.Create(admin).Error; err != nil {
			return err
		}

		s.logger.Info("demo hostel seeded", zap.String("hostel_id", hostel.ID), zap.String("admin_phone", adminPhone))
		return nil
	})
}
