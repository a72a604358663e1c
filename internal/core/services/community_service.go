package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/pagination"

	"go.uber.org/zap"
)

// CommunityService handles resident complaints and admin broadcasts
type CommunityService struct {
	complaints repositories.ComplaintRepository
	broadcasts repositories.BroadcastRepository
	residents  repositories.ResidentRepository
	users      repositories.UserRepository
	notifier   *Notifier
	now        func() time.Time
	logger     *zap.Logger
}

// NewCommunityService creates a new community service
func NewCommunityService(
	complaints repositories.ComplaintRepository,
	broadcasts repositories.BroadcastRepository,
	residents repositories.ResidentRepository,
	users repositories.UserRepository,
	notifier *Notifier,
	logger *zap.Logger,
) *CommunityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommunityService{
		complaints: complaints,
		broadcasts: broadcasts,
		residents:  residents,
		users:      users,
		notifier:   notifier,
		now:        time.Now,
		logger:     logger,
	}
}

// ComplaintInput represents a new complaint
type ComplaintInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BroadcastInput represents a new broadcast
type BroadcastInput struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// FileComplaint opens a complaint for the session's resident and alerts the hostel admins
func (s *CommunityService) FileComplaint(ctx context.Context, sess domain.Session, input ComplaintInput) (*models.Complaint, error) {
	scope, err := activeResident(ctx, s.residents, sess)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}

	complaint := &models.Complaint{
		ResidentID:  sess.ResidentID,
		UserID:      sess.UID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.ComplaintOpen,
	}
	if err := s.complaints.Create(ctx, scope, complaint); err != nil {
		return nil, err
	}

	if admins, err := s.users.ListByRole(ctx, scope, domain.RoleAdmin); err != nil {
		s.logger.Warn("complaint notification recipients lookup failed", zap.Error(err))
	} else if s.notifier != nil {
		s.notifier.Notify(pushTokens(admins), PushMessage{
			Title: "New complaint",
			Body:  complaint.Title,
			Data:  map[string]string{"type": "complaint", "complaint_id": complaint.ID},
		})
	}
	return complaint, nil
}

// ListComplaints lists complaints visible to the session, newest first
func (s *CommunityService) ListComplaints(ctx context.Context, sess domain.Session, status domain.ComplaintStatus, p pagination.Params) (*pagination.Page[*models.Complaint], error) {
	scope, err := sess.Scope()
	if err != nil {
		return nil, err
	}

	var filters []repositories.Filter
	switch sess.Role {
	case domain.RoleResident:
		filters = append(filters, repositories.Where("resident_id", sess.ResidentID))
	case domain.RoleGuardian:
		filters = append(filters, repositories.Where("resident_id", sess.LinkedResidentID))
	case domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, sess.Role)
	}
	if status != "" {
		filters = append(filters, repositories.Where("status", status))
	}

	total, err := s.complaints.Count(ctx, scope, filters...)
	if err != nil {
		return nil, err
	}
	items, err := s.complaints.Find(ctx, scope, repositories.Query{
		Filters: filters,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Index:   "idx_complaints_hostel_created",
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[*models.Complaint]{Items: items, Meta: pagination.NewMeta(p, total)}, nil
}

// ResolveComplaint closes an open complaint
func (s *CommunityService) ResolveComplaint(ctx context.Context, sess domain.Session, complaintID string) (*models.Complaint, error) {
	scope, err := scopeFor(sess, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.complaints.CompareAndUpdate(ctx, scope, complaintID,
		map[string]interface{}{"status": domain.ComplaintOpen},
		map[string]interface{}{"status": domain.ComplaintResolved, "resolved_by": sess.UID, "resolved_at": now})
	if err != nil {
		return nil, err
	}

	complaint, err := s.complaints.Get(ctx, scope, complaintID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: complaint is already %s", domain.ErrInvalidInput, complaint.Status)
	}

	if resident, err := s.users.GetByResidentID(ctx, scope, complaint.ResidentID); err == nil && s.notifier != nil {
		s.notifier.Notify(pushTokens([]*models.User{resident}), PushMessage{
			Title: "Complaint resolved",
			Body:  complaint.Title,
			Data:  map[string]string{"type": "complaint", "complaint_id": complaint.ID},
		})
	}
	return complaint, nil
}

// PostBroadcast publishes an admin announcement to every user of the hostel
func (s *CommunityService) PostBroadcast(ctx context.Context, sess domain.Session, input BroadcastInput) (*models.Broadcast, error) {
	scope, err := scopeFor(sess, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	title, message := strings.TrimSpace(input.Title), strings.TrimSpace(input.Message)
	if title == "" || message == "" {
		return nil, fmt.Errorf("%w: title and message are required", domain.ErrInvalidInput)
	}

	broadcast := &models.Broadcast{AuthorID: sess.UID, Title: title, Message: message}
	if err := s.broadcasts.Create(ctx, scope, broadcast); err != nil {
		return nil, err
	}

	recipients, err := s.users.ListByRole(ctx, scope, domain.RoleResident, domain.RoleGuardian)
	if err != nil {
		s.logger.Warn("broadcast recipients lookup failed", zap.String("broadcast_id", broadcast.ID), zap.Error(err))
		return broadcast, nil
	}
	if s.notifier != nil {
		s.notifier.Notify(pushTokens(recipients), PushMessage{
			Title: title,
			Body:  message,
			Data:  map[string]string{"type": "broadcast", "broadcast_id": broadcast.ID},
		})
	}
	return broadcast, nil
}

// ListBroadcasts lists the hostel's broadcasts, newest first
func (s *CommunityService) ListBroadcasts(ctx context.Context, sess domain.Session, p pagination.Params) (*pagination.Page[*models.Broadcast], error) {
	scope, err := sess.Scope()
	if err != nil {
		return nil, err
	}

	total, err := s.broadcasts.Count(ctx, scope)
	if err != nil {
		return nil, err
	}
	items, err := s.broadcasts.Find(ctx, scope, repositories.Query{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Index:   "idx_broadcasts_hostel_created",
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[*models.Broadcast]{Items: items, Meta: pagination.NewMeta(p, total)}, nil
}
