package services

import (
	"context"
	"fmt"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/geofence"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ============================================================
// Roll-call reminders
// ============================================================

const (
	DefaultMorningReminderSpec = "0 7 * * *"
	DefaultEveningReminderSpec = "0 20 * * *"
)

// ReminderService pushes a reminder to every active resident when a roll-call window opens
type ReminderService struct {
	hostels   repositories.HostelRepository
	residents repositories.ResidentRepository
	users     repositories.UserRepository
	notifier *Notifier
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewReminderService creates a new reminder service running in loc
func NewReminderService(
	hostels repositories.HostelRepository,
	residents repositories.ResidentRepository,
	users repositories.UserRepository,
	notifier *Notifier,
	loc *time.Location,
	logger *zap.Logger,
) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		hostels:   hostels,
		residents: residents,
		users:     users,
		notifier: notifier,
		cron:     cron.New(cron.WithLocation(loc)),
		logger:   logger,
	}
}

// Schedule registers the morning and evening jobs
func (s *ReminderService) Schedule(morningSpec, eveningSpec string) error {
	jobs := []struct {
		spec string
		slot geofence.Slot
	}{
		{morningSpec, geofence.MorningSlot},
		{eveningSpec, geofence.EveningSlot},
	}
	for _, j := range jobs {
		slot := j.slot
		if _, err := s.cron.AddFunc(j.spec, func() {
			sent, err := s.SendReminders(context.Background(), slot)
			if err != nil {
				s.logger.Warn("roll-call reminder run failed", zap.String("slot", slot.Name), zap.Error(err))
				return
			}
			s.logger.Info("roll-call reminders queued", zap.String("slot", slot.Name), zap.Int("hostels", sent))
		}); err != nil {
			return fmt.Errorf("schedule %s reminder %q: %w", slot.Name, j.spec, err)
		}
	}
	return nil
}

// Start starts the scheduler
func (s *ReminderService) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job
func (s *ReminderService) Stop() {
	<-s.cron.Stop().Done()
}

// SendReminders queues a reminder for the residents of every hostel and
// returns the number of hostels reached. A failing hostel does not stop the run.
func (s *ReminderService) SendReminders(ctx context.Context, slot geofence.Slot) (int, error) {
	hostels, err := s.hostels.List(ctx)
	if err != nil {
		return 0, err
	}

	msg := PushMessage{
		Title: "Roll-call is open",
		Body:  fmt.Sprintf("Mark your attendance: %s", slot.Label()),
		Data:  map[string]string{"type": "roll_call", "slot": slot.Name},
	}

	reached := 0
	for _, h := range hostels {
		recipients, err := s.recipients(ctx, domain.TenantScope(h.ID))
		if err != nil {
			s.logger.Warn("reminder recipients lookup failed", zap.String("hostel_id", h.ID), zap.Error(err))
			continue
		}
		tokens := pushTokens(recipients)
		if len(tokens) == 0 {
			continue
		}
		if err := s.notifier.Enqueue(tokens, msg); err != nil {
			s.logger.Warn("reminder dropped", zap.String("hostel_id", h.ID), zap.Error(err))
			continue
		}
		reached++
	}
	return reached, nil
}

// recipients returns the resident users of the hostel whose resident record is still active
func (s *ReminderService) recipients(ctx context.Context, scope domain.Scope) ([]*models.User, error) {
	active, err := s.residents.Find(ctx, scope, repositories.Query{
		Filters: []repositories.Filter{repositories.Where("status", domain.ResidentActive)},
	})
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	ids := make(map[string]bool, len(active))
	for _, r := range active {
		ids[r.ID] = true
	}

	users, err := s.users.ListByRole(ctx, scope, domain.RoleResident)
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if ids[u.ResidentID] {
			out = append(out, u)
		}
	}
	return out, nil
}
