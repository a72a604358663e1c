package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/geofence"
	"hostelpg/internal/pkg/metrics"
	"hostelpg/internal/pkg/pagination"

	"go.uber.org/zap"
)

// AttendanceOptions holds the roll-call policy
type AttendanceOptions struct {
	Location     *time.Location
	RadiusMeters float64
	// Bypass skips the time-window and geofence checks, never biometrics
	Bypass bool
	Now    func() time.Time
}

// AttendanceService records roll-call attendance and entry/exit movements
type AttendanceService struct {
	attendance repositories.AttendanceRepository
	movements  repositories.MovementRepository
	residents  repositories.ResidentRepository
	hostels    repositories.HostelRepository
	users      repositories.UserRepository
	notifier   *Notifier
	opts       AttendanceOptions
	logger     *zap.Logger
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(
	attendance repositories.AttendanceRepository,
	movements repositories.MovementRepository,
	residents repositories.ResidentRepository,
	hostels repositories.HostelRepository,
	users repositories.UserRepository,
	notifier *Notifier,
	opts AttendanceOptions,
	logger *zap.Logger,
) *AttendanceService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = geofence.DefaultRadiusMeters
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		attendance: attendance,
		movements:  movements,
		residents:  residents,
		hostels:    hostels,
		users:      users,
		notifier:   notifier,
		opts:       opts,
		logger:     logger,
	}
}

// Window reports whether roll-call is open now and, if not, when it opens next
func (s *AttendanceService) Window() geofence.WindowStatus {
	return geofence.CheckWindow(s.opts.Now(), s.opts.Location)
}

// MarkRollCall runs the roll-call protocol for the session's resident:
// time window, location capture, geofence, biometric, then persist.
// Every refusal is an *domain.AttendanceRejection and nothing is stored.
func (s *AttendanceService) MarkRollCall(ctx context.Context, sess domain.Session, location LocationProvider, biometric BiometricVerifier) (*models.AttendanceRecord, error) {
	record, err := s.markRollCall(ctx, sess, location, biometric)
	var rej *domain.AttendanceRejection
	switch {
	case err == nil:
		metrics.RollCalls.WithLabelValues(metrics.OutcomeRecorded).Inc()
	case errors.As(err, &rej):
		metrics.RollCalls.WithLabelValues(string(rej.Reason)).Inc()
	default:
		metrics.RollCalls.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return record, err
}

func (s *AttendanceService) markRollCall(ctx context.Context, sess domain.Session, location LocationProvider, biometric BiometricVerifier) (*models.AttendanceRecord, error) {
	scope, err := activeResident(ctx, s.residents, sess)
	if err != nil {
		return nil, err
	}
	hostel, err := s.hostels.GetByID(ctx, scope.HostelID())
	if err != nil {
		return nil, err
	}

	// 1. Time window
	if !s.opts.Bypass {
		window := geofence.CheckWindow(s.opts.Now(), s.opts.Location)
		if !window.Allowed {
			return nil, &domain.AttendanceRejection{Reason: domain.ReasonOutsideTimeWindow, NextSlotLabel: window.NextSlotLabel}
		}
	}

	// 2. Location
	point, err := location.CurrentPosition(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.AttendanceRejection{Reason: domain.ReasonLocationUnavailable, Err: err}
	}
	center := geofence.Point{Latitude: hostel.Latitude, Longitude: hostel.Longitude}
	distance := geofence.DistanceMeters(point, center)

	// 3. Geofence
	if !s.opts.Bypass && !geofence.Within(point, center, s.opts.RadiusMeters) {
		return nil, &domain.AttendanceRejection{Reason: domain.ReasonOutsideGeofence, Distance: distance}
	}

	// 4. Biometric
	if err := s.verify(ctx, biometric); err != nil {
		return nil, err
	}

	// 5. Persist
	record := &models.AttendanceRecord{
		ResidentID: sess.ResidentID,
		UserID:     sess.UID,
		Timestamp:  s.opts.Now(),
		Latitude:   point.Latitude,
		Longitude:  point.Longitude,
		Distance:   distance,
		Bypassed:   s.opts.Bypass,
	}
	if err := s.attendance.Create(ctx, scope, record); err != nil {
		return nil, err
	}

	s.logger.Info("roll-call recorded",
		zap.String("resident_id", record.ResidentID),
		zap.Float64("distance_m", distance),
		zap.Bool("bypassed", s.opts.Bypass))
	return record, nil
}

// MarkMovement logs an entry or exit for the session's resident after biometric confirmation.
// Movements are not gated by time or location and need not alternate.
func (s *AttendanceService) MarkMovement(ctx context.Context, sess domain.Session, kind domain.MovementType, biometric BiometricVerifier) (*models.EntryExitLog, error) {
	scope, err := activeResident(ctx, s.residents, sess)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseMovementType(string(kind)); err != nil {
		return nil, err
	}

	if err := s.verify(ctx, biometric); err != nil {
		return nil, err
	}

	entry := &models.EntryExitLog{
		ResidentID: sess.ResidentID,
		UserID:     sess.UID,
		Type:       kind,
		Timestamp:  s.opts.Now(),
	}
	if err := s.movements.Create(ctx, scope, entry); err != nil {
		return nil, err
	}

	metrics.Movements.WithLabelValues(string(kind)).Inc()
	s.notifyGuardians(ctx, scope, entry)
	return entry, nil
}

func (s *AttendanceService) verify(ctx context.Context, biometric BiometricVerifier) error {
	ok, err := biometric.Authenticate(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil || !ok {
		return &domain.AttendanceRejection{Reason: domain.ReasonBiometricFailed, Err: err}
	}
	return nil
}

// MovementStatus is the latest known movement of a resident
type MovementStatus struct {
	ResidentID string              `json:"resident_id"`
	Type       domain.MovementType `json:"type,omitempty"`
	At         *time.Time          `json:"at,omitempty"`
}

// WardStatus returns the type of the most recent entry/exit log of a resident.
// It does not reconcile missing or repeated logs.
func (s *AttendanceService) WardStatus(ctx context.Context, sess domain.Session, residentID string) (*MovementStatus, error) {
	scope, ward, err := wardFor(ctx, s.residents, sess, residentID)
	if err != nil {
		return nil, err
	}

	items, err := s.movements.Find(ctx, scope, repositories.Query{
		Filters: []repositories.Filter{repositories.Where("resident_id", ward)},
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   1,
		Index:   "idx_movements_resident_time",
	})
	if err != nil {
		return nil, err
	}

	status := &MovementStatus{ResidentID: ward}
	if len(items) > 0 {
		status.Type = items[0].Type
		status.At = &items[0].Timestamp
	}
	return status, nil
}

// History lists roll-call records of a resident, newest first
func (s *AttendanceService) History(ctx context.Context, sess domain.Session, residentID string, p pagination.Params) (*pagination.Page[*models.AttendanceRecord], error) {
	scope, ward, err := wardFor(ctx, s.residents, sess, residentID)
	if err != nil {
		return nil, err
	}

	filter := repositories.Where("resident_id", ward)
	total, err := s.attendance.Count(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.attendance.Find(ctx, scope, repositories.Query{
		Filters: []repositories.Filter{filter},
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Index:   "idx_attendance_resident_time",
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[*models.AttendanceRecord]{Items: items, Meta: pagination.NewMeta(p, total)}, nil
}

func (s *AttendanceService) notifyGuardians(ctx context.Context, scope domain.Scope, entry *models.EntryExitLog) {
	if s.notifier == nil {
		return
	}
	guardians, err := s.users.ListGuardians(ctx, scope, entry.ResidentID)
	if err != nil {
		s.logger.Warn("movement notification recipients lookup failed", zap.String("resident_id", entry.ResidentID), zap.Error(err))
		return
	}

	verb := "entered"
	if entry.Type == domain.MovementExit {
		verb = "left"
	}
	s.notifier.Notify(pushTokens(guardians), PushMessage{
		Title: "Hostel " + string(entry.Type),
		Body:  fmt.Sprintf("Your ward %s the hostel at %s", verb, entry.Timestamp.In(s.opts.Location).Format("15:04")),
		Data:  map[string]string{"type": "movement", "resident_id": entry.ResidentID, "movement": string(entry.Type)},
	})
}
