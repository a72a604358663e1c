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

// AttendanceHandler handles roll-call and entry/exit endpoints
type AttendanceHandler struct {
	attendanceService *services.AttendanceService
	logger            *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(attendanceService *services.AttendanceService, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		logger:            logger,
	}
}

// MovementRequest carries an entry/exit mark
type MovementRequest struct {
	Type      string `json:"type"`
	Biometric *bool  `json:"biometric"`
}

// ============================================================
// POST /api/v1/attendance/roll-call (resident)
// ============================================================
func (h *AttendanceHandler) MarkRollCall(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var req SensorRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	record, err := h.attendanceService.MarkRollCall(c.Context(), sess, req.location(), req.biometric())
	if err != nil {
		return respondError(c, h.logger, err, "Failed to mark attendance")
	}
	return response.Created(c, "Attendance marked", record)
}

// ============================================================
// GET /api/v1/attendance/window
// ============================================================
func (h *AttendanceHandler) Window(c *fiber.Ctx) error {
	return response.Success(c, "Roll-call window", h.attendanceService.Window())
}

// ============================================================
// GET /api/v1/attendance?resident_id=&page=&limit=
// ============================================================
func (h *AttendanceHandler) History(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	page, err := h.attendanceService.History(c.Context(), sess, c.Query("resident_id"), pagination.FromQuery(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to get attendance history")
	}
	return response.Success(c, "Attendance retrieved", page)
}

// ============================================================
// POST /api/v1/movements (resident)
// ============================================================
func (h *AttendanceHandler) MarkMovement(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	kind, err := domain.ParseMovementType(req.Type)
	if err != nil {
		return response.BadRequest(c, "Type must be entry or exit")
	}

	entry, err := h.attendanceService.MarkMovement(c.Context(), sess, kind, bodyBiometric{result: req.Biometric})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to record movement")
	}
	return response.Created(c, "Movement recorded", entry)
}

// ============================================================
// GET /api/v1/movements/status?resident_id=
// ============================================================
func (h *AttendanceHandler) WardStatus(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	status, err := h.attendanceService.WardStatus(c.Context(), sess, c.Query("resident_id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to get movement status")
	}
	return response.Success(c, "Movement status retrieved", status)
}
