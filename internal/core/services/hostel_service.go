package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/pagination"
	"hostelpg/internal/pkg/phone"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceholderPrefix marks user ids created before the person has signed in
const PlaceholderPrefix = "placeholder-"

// HostelService handles hostel onboarding and resident registration
type HostelService struct {
	hostels     repositories.HostelRepository
	residents   repositories.ResidentRepository
	users       repositories.UserRepository
	countryCode string
	logger      *zap.Logger
}

// NewHostelService creates a new hostel service
func NewHostelService(
	hostels repositories.HostelRepository,
	residents repositories.ResidentRepository,
	users repositories.UserRepository,
	countryCode string,
	logger *zap.Logger,
) *HostelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostelService{
		hostels:     hostels,
		residents:   residents,
		users:       users,
		countryCode: countryCode,
		logger:      logger,
	}
}

// RegisterHostelInput represents hostel owner self-registration
type RegisterHostelInput struct {
	OwnerName string  `json:"owner_name"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Occupancy int     `json:"occupancy"`
}

// RegisterResidentInput represents an admin registering a resident
type RegisterResidentInput struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	RoomNumber    string `json:"room_number"`
	GuardianName  string `json:"guardian_name"`
	GuardianPhone string `json:"guardian_phone"`
}

// RegisteredResident is the outcome of a resident registration
type RegisteredResident struct {
	Resident     *models.Resident `json:"resident"`
	ResidentUser *models.User     `json:"resident_user"`
	GuardianUser *models.User     `json:"guardian_user,omitempty"`
}

// RegisterHostel creates a hostel owned by the session's user and makes that user its admin.
// The caller must refresh its session to pick up the new tenant.
func (s *HostelService) RegisterHostel(ctx context.Context, sess domain.Session, input RegisterHostelInput) (*models.Hostel, error) {
	if sess.Role != "" || sess.HostelID != "" {
		return nil, domain.ErrHostelAlreadyAssigned
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: hostel name is required", domain.ErrInvalidInput)
	}
	if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
		return nil, fmt.Errorf("%w: hostel location out of range", domain.ErrInvalidInput)
	}
	if input.Occupancy < 0 {
		return nil, fmt.Errorf("%w: occupancy must not be negative", domain.ErrInvalidInput)
	}

	owner, err := s.users.GetByID(ctx, sess.UID)
	switch {
	case err == nil:
		if owner.HostelID != "" {
			return nil, domain.ErrHostelAlreadyAssigned
		}
	case errors.Is(err, domain.ErrNotFound):
		owner = &models.User{ID: sess.UID, Phone: sess.Phone}
	default:
		return nil, err
	}

	// 1. Create hostel
	hostel := &models.Hostel{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Address:   strings.TrimSpace(input.Address),
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Occupancy: input.Occupancy,
	}
	if err := s.hostels.Create(ctx, hostel); err != nil {
		return nil, err
	}

	// 2. Make the owner its admin
	owner.Role = domain.RoleAdmin
	owner.HostelID = hostel.ID
	if input.OwnerName != "" {
		owner.Name = strings.TrimSpace(input.OwnerName)
	}
	if err := s.users.Update(ctx, owner); err != nil {
		s.logger.Error("hostel created without admin", zap.String("hostel_id", hostel.ID), zap.String("uid", sess.UID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("hostel registered", zap.String("hostel_id", hostel.ID), zap.String("owner", sess.UID))
	return hostel, nil
}

// GetHostel returns the session's hostel
func (s *HostelService) GetHostel(ctx context.Context, sess domain.Session) (*models.Hostel, error) {
	scope, err := sess.Scope()
	if err != nil {
		return nil, err
	}
	return s.hostels.GetByID(ctx, scope.HostelID())
}

// RegisterResident creates a resident profile plus placeholder users for the
// resident and, when given, the guardian. Both are re-keyed on first login.
func (s *HostelService) RegisterResident(ctx context.Context, sess domain.Session, input RegisterResidentInput) (*RegisteredResident, error) {
	scope, err := scopeFor(sess, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	residentPhone := phone.Normalize(input.Phone, s.countryCode)
	if name == "" || residentPhone == "" {
		return nil, fmt.Errorf("%w: name and phone are required", domain.ErrInvalidInput)
	}
	guardianPhone := ""
	if strings.TrimSpace(input.GuardianPhone) != "" {
		guardianPhone = phone.Normalize(input.GuardianPhone, s.countryCode)
		if guardianPhone == "" {
			return nil, fmt.Errorf("%w: guardian phone", domain.ErrInvalidInput)
		}
		if guardianPhone == residentPhone {
			return nil, fmt.Errorf("%w: guardian phone equals resident phone", domain.ErrInvalidInput)
		}
	}

	// 1. Phones must be free
	for _, p := range []string{residentPhone, guardianPhone} {
		if p == "" {
			continue
		}
		exists, err := s.users.ExistsByPhone(ctx, p)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrPhoneInUse, p)
		}
	}

	// 2. Resident profile
	resident := &models.Resident{
		Name:          name,
		Phone:         residentPhone,
		RoomNumber:    strings.TrimSpace(input.RoomNumber),
		GuardianName:  strings.TrimSpace(input.GuardianName),
		GuardianPhone: guardianPhone,
		Status:        domain.ResidentActive,
	}
	if err := s.residents.Create(ctx, scope, resident); err != nil {
		return nil, err
	}

	// 3. Placeholder users
	out := &RegisteredResident{Resident: resident}
	out.ResidentUser = &models.User{
		ID:         PlaceholderPrefix + uuid.NewString(),
		Name:       name,
		Phone:      residentPhone,
		Role:       domain.RoleResident,
		HostelID:   scope.HostelID(),
		ResidentID: resident.ID,
	}
	if err := s.users.Create(ctx, out.ResidentUser); err != nil {
		return nil, err
	}

	if guardianPhone != "" {
		out.GuardianUser = &models.User{
			ID:               PlaceholderPrefix + uuid.NewString(),
			Name:             resident.GuardianName,
			Phone:            guardianPhone,
			Role:             domain.RoleGuardian,
			HostelID:         scope.HostelID(),
			LinkedResidentID: resident.ID,
		}
		if err := s.users.Create(ctx, out.GuardianUser); err != nil {
			return nil, err
		}
	}

	s.logger.Info("resident registered",
		zap.String("hostel_id", scope.HostelID()),
		zap.String("resident_id", resident.ID),
		zap.Bool("guardian", out.GuardianUser != nil))
	return out, nil
}

// ListResidents lists the hostel's residents by name
func (s *HostelService) ListResidents(ctx context.Context, sess domain.Session, status domain.ResidentStatus, p pagination.Params) (*pagination.Page[*models.Resident], error) {
	scope, err := scopeFor(sess, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	var filters []repositories.Filter
	if status != "" {
		filters = append(filters, repositories.Where("status", status))
	}

	total, err := s.residents.Count(ctx, scope, filters...)
	if err != nil {
		return nil, err
	}
	items, err := s.residents.Find(ctx, scope, repositories.Query{
		Filters: filters,
		OrderBy: "name",
		Limit:   p.Limit,
		Offset:  p.Offset,
		Index:   "idx_residents_hostel_name",
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[*models.Resident]{Items: items, Meta: pagination.NewMeta(p, total)}, nil
}

// OffboardResident moves an active resident to inactive
func (s *HostelService) OffboardResident(ctx context.Context, sess domain.Session, residentID string) (*models.Resident, error) {
	scope, err := scopeFor(sess, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	ok, err := s.residents.CompareAndUpdate(ctx, scope, residentID,
		map[string]interface{}{"status": domain.ResidentActive},
		map[string]interface{}{"status": domain.ResidentInactive})
	if err != nil {
		return nil, err
	}

	resident, err := s.residents.Get(ctx, scope, residentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: resident is already %s", domain.ErrInvalidInput, resident.Status)
	}
	return resident, nil
}

// UpdatePushToken stores the device push token of the session's user
func (s *HostelService) UpdatePushToken(ctx context.Context, sess domain.Session, token string) error {
	if sess.UID == "" {
		return domain.ErrUnauthorized
	}
	return s.users.UpdatePushToken(ctx, sess.UID, strings.TrimSpace(token))
}
