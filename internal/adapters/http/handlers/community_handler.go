package handlers

import (
	"hostelpg/internal/adapters/http/middleware"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/core/services"
	"hostelpg/internal/pkg/pagination"
	"hostelpg/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CommunityHandler handles complaints and broadcasts
type CommunityHandler struct {
	communityService *services.CommunityService
	logger           *zap.Logger
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(communityService *services.CommunityService, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{
		communityService: communityService,
		logger:           logger,
	}
}

// ============================================================
// Complaints
// ============================================================

// FileComplaint - POST /api/v1/complaints (resident)
func (h *CommunityHandler) FileComplaint(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var input services.ComplaintInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	complaint, err := h.communityService.FileComplaint(c.Context(), sess, input)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to file complaint")
	}
	return response.Created(c, "Complaint filed", complaint)
}

// ListComplaints - GET /api/v1/complaints?status=
func (h *CommunityHandler) ListComplaints(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	status := domain.ComplaintStatus(c.Query("status"))
	switch status {
	case "", domain.ComplaintOpen, domain.ComplaintResolved:
	default:
		return response.BadRequest(c, "Invalid status")
	}

	page, err := h.communityService.ListComplaints(c.Context(), sess, status, pagination.FromQuery(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list complaints")
	}
	return response.Success(c, "Complaints retrieved", page)
}

// ResolveComplaint - PATCH /api/v1/complaints/:id/resolve (admin)
func (h *CommunityHandler) ResolveComplaint(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	complaint, err := h.communityService.ResolveComplaint(c.Context(), sess, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to resolve complaint")
	}
	return response.Success(c, "Complaint resolved", complaint)
}

// ============================================================
// Broadcasts
// ============================================================

// PostBroadcast - POST /api/v1/broadcasts (admin)
func (h *CommunityHandler) PostBroadcast(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var input services.BroadcastInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	broadcast, err := h.communityService.PostBroadcast(c.Context(), sess, input)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to post broadcast")
	}
	return response.Created(c, "Broadcast posted", broadcast)
}

// ListBroadcasts - GET /api/v1/broadcasts
func (h *CommunityHandler) ListBroadcasts(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	page, err := h.communityService.ListBroadcasts(c.Context(), sess, pagination.FromQuery(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list broadcasts")
	}
	return response.Success(c, "Broadcasts retrieved", page)
}
