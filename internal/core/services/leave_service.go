package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/metrics"
	"hostelpg/internal/pkg/pagination"

	"go.uber.org/zap"
)

const leaveDateLayout = "2006-01-02"

// LeaveService drives leave requests through guardian and admin approval
type LeaveService struct {
	leaves    repositories.LeaveRepository
	residents repositories.ResidentRepository
	users     repositories.UserRepository
	notifier  *Notifier
	logger    *zap.Logger
}

// NewLeaveService creates a new leave service
func NewLeaveService(
	leaves repositories.LeaveRepository,
	residents repositories.ResidentRepository,
	users repositories.UserRepository,
	notifier *Notifier,
	logger *zap.Logger,
) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{
		leaves:    leaves,
		residents: residents,
		users:     users,
		notifier:  notifier,
		logger:    logger,
	}
}

// SubmitLeaveInput represents a resident's leave application
type SubmitLeaveInput struct {
	Reason    string `json:"reason"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (in SubmitLeaveInput) validate() error {
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: reason is required", domain.ErrInvalidInput)
	}
	start, err := time.Parse(leaveDateLayout, in.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start_date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	end, err := time.Parse(leaveDateLayout, in.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end_date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date is before start_date", domain.ErrInvalidInput)
	}
	return nil
}

// LeaveView is a leave with its derived progress indicator
type LeaveView struct {
	Leave    *models.LeaveRequest  `json:"leave"`
	Progress []domain.ProgressStep `json:"progress"`
}

// Submit files a leave for the session's resident; it always starts pending guardian approval
func (s *LeaveService) Submit(ctx context.Context, sess domain.Session, input SubmitLeaveInput) (*models.LeaveRequest, error) {
	scope, err := activeResident(ctx, s.residents, sess)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	leave := &models.LeaveRequest{
		ResidentID: sess.ResidentID,
		UserID:     sess.UID,
		Reason:     strings.TrimSpace(input.Reason),
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		Status:     domain.LeavePendingGuardian,
	}
	if err := s.leaves.Create(ctx, scope, leave); err != nil {
		return nil, err
	}

	s.notifyNext(ctx, scope, leave)
	return leave, nil
}

// Approve advances a leave one stage as the session's role
func (s *LeaveService) Approve(ctx context.Context, sess domain.Session, leaveID string) (*models.LeaveRequest, error) {
	return s.decide(ctx, sess, leaveID, domain.LeaveApprove)
}

// Reject ends a pending leave as the session's role
func (s *LeaveService) Reject(ctx context.Context, sess domain.Session, leaveID string) (*models.LeaveRequest, error) {
	return s.decide(ctx, sess, leaveID, domain.LeaveReject)
}

func (s *LeaveService) decide(ctx context.Context, sess domain.Session, leaveID string, action domain.LeaveAction) (*models.LeaveRequest, error) {
	scope, err := sess.Scope()
	if err != nil {
		return nil, err
	}

	leave, err := s.leaves.Get(ctx, scope, leaveID)
	if err != nil {
		return nil, err
	}
	if err := domain.AssertSameTenant(leave, scope); err != nil {
		return nil, err
	}

	switch sess.Role {
	case domain.RoleGuardian:
		if leave.ResidentID != sess.LinkedResidentID {
			return nil, domain.ErrGuardianNotLinked
		}
	case domain.RoleAdmin, domain.RoleResident:
		// admins act on any leave of their hostel; residents are refused by the transition table
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, sess.Role)
	}

	next, err := domain.NextLeaveStatus(leave.Status, sess.Role, action)
	if err != nil {
		return nil, err
	}

	applied, err := s.leaves.CompareAndUpdate(ctx, scope, leave.ID,
		map[string]interface{}{"status": leave.Status},
		map[string]interface{}{"status": next})
	if err != nil {
		return nil, err
	}
	if !applied {
		// someone else moved it first; report against the state that won
		current, getErr := s.leaves.Get(ctx, scope, leave.ID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &domain.InvalidTransitionError{From: current.Status, Actor: sess.Role, Action: action}
	}

	s.logger.Info("leave transition",
		zap.String("leave_id", leave.ID),
		zap.String("from", string(leave.Status)),
		zap.String("to", string(next)),
		zap.String("actor", sess.UID))
	metrics.LeaveTransitions.WithLabelValues(string(leave.Status), string(next), string(sess.Role)).Inc()

	leave.Status = next
	s.notifyNext(ctx, scope, leave)
	return leave, nil
}

// List lists leaves visible to the session, newest first.
// Residents and guardians see their ward's leaves; admins see the hostel's, optionally by status.
func (s *LeaveService) List(ctx context.Context, sess domain.Session, status domain.LeaveStatus, p pagination.Params) (*pagination.Page[*models.LeaveRequest], error) {
	scope, q, err := s.listQuery(sess, status)
	if err != nil {
		return nil, err
	}

	total, err := s.leaves.Count(ctx, scope, q.Filters...)
	if err != nil {
		return nil, err
	}
	q.Limit, q.Offset = p.Limit, p.Offset
	items, err := s.leaves.Find(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[*models.LeaveRequest]{Items: items, Meta: pagination.NewMeta(p, total)}, nil
}

// Watch streams the session's leave list on every change, newest first
func (s *LeaveService) Watch(ctx context.Context, sess domain.Session, limit int) (<-chan []*models.LeaveRequest, error) {
	scope, q, err := s.listQuery(sess, "")
	if err != nil {
		return nil, err
	}
	q.Limit = limit
	return s.leaves.Subscribe(ctx, scope, q)
}

func (s *LeaveService) listQuery(sess domain.Session, status domain.LeaveStatus) (domain.Scope, repositories.Query, error) {
	scope, err := sess.Scope()
	if err != nil {
		return domain.Scope{}, repositories.Query{}, err
	}

	q := repositories.Query{OrderBy: "created_at", Desc: true}
	switch sess.Role {
	case domain.RoleResident:
		q.Filters = []repositories.Filter{repositories.Where("resident_id", sess.ResidentID)}
		q.Index = "idx_leaves_resident_created"
	case domain.RoleGuardian:
		q.Filters = []repositories.Filter{repositories.Where("resident_id", sess.LinkedResidentID)}
		q.Index = "idx_leaves_resident_created"
	case domain.RoleAdmin:
		q.Index = "idx_leaves_hostel_created"
	default:
		return domain.Scope{}, repositories.Query{}, fmt.Errorf("%w: %q", domain.ErrUnknownRole, sess.Role)
	}
	if status != "" {
		q.Filters = append(q.Filters, repositories.Where("status", status))
	}
	return scope, q, nil
}

// Latest returns the newest leave of a resident with its progress steps.
// residentID is only needed by admins.
func (s *LeaveService) Latest(ctx context.Context, sess domain.Session, residentID string) (*LeaveView, error) {
	scope, ward, err := wardFor(ctx, s.residents, sess, residentID)
	if err != nil {
		return nil, err
	}

	items, err := s.leaves.Find(ctx, scope, repositories.Query{
		Filters: []repositories.Filter{repositories.Where("resident_id", ward)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   1,
		Index:   "idx_leaves_resident_created",
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &LeaveView{Leave: items[0], Progress: domain.LeaveProgress(items[0].Status)}, nil
}

// notifyNext tells the party now responsible for the leave.
// Lookup and enqueue failures are logged only.
func (s *LeaveService) notifyNext(ctx context.Context, scope domain.Scope, leave *models.LeaveRequest) {
	if s.notifier == nil {
		return
	}

	var (
		recipients []*models.User
		msg        PushMessage
		err        error
	)
	data := map[string]string{"type": "leave", "leave_id": leave.ID, "status": string(leave.Status)}

	switch leave.Status {
	case domain.LeavePendingGuardian:
		recipients, err = s.users.ListGuardians(ctx, scope, leave.ResidentID)
		msg = PushMessage{
			Title: "Leave request",
			Body:  fmt.Sprintf("Your ward applied for leave %s to %s: %s", leave.StartDate, leave.EndDate, leave.Reason),
			Data:  data,
		}
	case domain.LeavePendingAdmin:
		recipients, err = s.users.ListByRole(ctx, scope, domain.RoleAdmin)
		msg = PushMessage{
			Title: "Leave awaiting approval",
			Body:  fmt.Sprintf("Guardian approved leave %s to %s", leave.StartDate, leave.EndDate),
			Data:  data,
		}
	case domain.LeaveApproved, domain.LeaveRejected:
		var resident *models.User
		resident, err = s.users.GetByResidentID(ctx, scope, leave.ResidentID)
		if resident != nil {
			recipients = []*models.User{resident}
		}
		msg = PushMessage{
			Title: "Leave " + string(leave.Status),
			Body:  fmt.Sprintf("Your leave %s to %s was %s", leave.StartDate, leave.EndDate, leave.Status),
			Data:  data,
		}
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("leave notification recipients lookup failed", zap.String("leave_id", leave.ID), zap.Error(err))
		}
		return
	}

	s.notifier.Notify(pushTokens(recipients), msg)
}
