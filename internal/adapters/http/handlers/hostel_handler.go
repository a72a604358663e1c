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

// HostelHandler handles hostel onboarding, residents and the caller's profile
type HostelHandler struct {
	hostelService *services.HostelService
	logger        *zap.Logger
}

// NewHostelHandler creates a new hostel handler
func NewHostelHandler(hostelService *services.HostelService, logger *zap.Logger) *HostelHandler {
	return &HostelHandler{
		hostelService: hostelService,
		logger:        logger,
	}
}

// ============================================================
// POST /api/v1/hostels - owner self-registration
// ============================================================
func (h *HostelHandler) RegisterHostel(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var input services.RegisterHostelInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	hostel, err := h.hostelService.RegisterHostel(c.Context(), sess, input)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to register hostel")
	}
	return response.Created(c, "Hostel registered, refresh your session to continue", hostel)
}

// ============================================================
// GET /api/v1/hostels/me
// ============================================================
func (h *HostelHandler) GetMyHostel(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	hostel, err := h.hostelService.GetHostel(c.Context(), sess)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to get hostel")
	}
	return response.Success(c, "Hostel retrieved", hostel)
}

// ============================================================
// POST /api/v1/residents (admin)
// ============================================================
func (h *HostelHandler) RegisterResident(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var input services.RegisterResidentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	out, err := h.hostelService.RegisterResident(c.Context(), sess, input)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to register resident")
	}
	return response.Created(c, "Resident registered", out)
}

// ============================================================
// GET /api/v1/residents?status=&page=&limit= (admin)
// ============================================================
func (h *HostelHandler) ListResidents(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	status := domain.ResidentStatus(c.Query("status"))
	switch status {
	case "", domain.ResidentActive, domain.ResidentInactive:
	default:
		return response.BadRequest(c, "Invalid status")
	}

	page, err := h.hostelService.ListResidents(c.Context(), sess, status, pagination.FromQuery(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list residents")
	}
	return response.Success(c, "Residents retrieved", page)
}

// ============================================================
// PATCH /api/v1/residents/:id/offboard (admin)
// ============================================================
func (h *HostelHandler) OffboardResident(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	resident, err := h.hostelService.OffboardResident(c.Context(), sess, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to offboard resident")
	}
	return response.Success(c, "Resident offboarded", resident)
}

// PushTokenRequest represents a device push token update
type PushTokenRequest struct {
	Token string `json:"token"`
}

// ============================================================
// PUT /api/v1/users/me/push-token
// ============================================================
func (h *HostelHandler) UpdatePushToken(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var req PushTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.hostelService.UpdatePushToken(c.Context(), sess, req.Token); err != nil {
		return respondError(c, h.logger, err, "Failed to update push token")
	}
	return response.Success(c, "Push token updated", nil)
}

// ============================================================
// GET /api/v1/users/me
// ============================================================
func (h *HostelHandler) Me(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	return response.Success(c, "Session retrieved", fiber.Map{
		"uid":                sess.UID,
		"phone":              sess.Phone,
		"role":               sess.Role,
		"hostel_id":          sess.HostelID,
		"resident_id":        sess.ResidentID,
		"linked_resident_id": sess.LinkedResidentID,
	})
}
