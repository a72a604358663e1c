package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"hostelpg/internal/adapters/http/middleware"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/core/services"
	"hostelpg/internal/pkg/pagination"
	"hostelpg/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	streamHeartbeat   = 30 * time.Second
	defaultWatchLimit = 50
)

// LeaveHandler handles leave request endpoints
type LeaveHandler struct {
	leaveService *services.LeaveService
	logger       *zap.Logger
}

// NewLeaveHandler creates a new leave handler
func NewLeaveHandler(leaveService *services.LeaveService, logger *zap.Logger) *LeaveHandler {
	return &LeaveHandler{
		leaveService: leaveService,
		logger:       logger,
	}
}

// ============================================================
// POST /api/v1/leaves (resident)
// ============================================================
func (h *LeaveHandler) Submit(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	var input services.SubmitLeaveInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	leave, err := h.leaveService.Submit(c.Context(), sess, input)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to submit leave")
	}
	return response.Created(c, "Leave submitted", leave)
}

// ============================================================
// GET /api/v1/leaves?status=&page=&limit=
// ============================================================
func (h *LeaveHandler) List(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	status := domain.LeaveStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return response.BadRequest(c, "Invalid status")
	}

	page, err := h.leaveService.List(c.Context(), sess, status, pagination.FromQuery(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list leaves")
	}
	return response.Success(c, "Leaves retrieved", page)
}

// ============================================================
// GET /api/v1/leaves/latest?resident_id=
// ============================================================
func (h *LeaveHandler) Latest(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	view, err := h.leaveService.Latest(c.Context(), sess, c.Query("resident_id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to get latest leave")
	}
	return response.Success(c, "Latest leave retrieved", view)
}

// ============================================================
// POST /api/v1/leaves/:id/approve
// ============================================================
func (h *LeaveHandler) Approve(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	leave, err := h.leaveService.Approve(c.Context(), sess, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to approve leave")
	}
	return response.Success(c, "Leave approved", leave)
}

// ============================================================
// POST /api/v1/leaves/:id/reject
// ============================================================
func (h *LeaveHandler) Reject(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	leave, err := h.leaveService.Reject(c.Context(), sess, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to reject leave")
	}
	return response.Success(c, "Leave rejected", leave)
}

// ============================================================
// GET /api/v1/leaves/stream?limit= - SSE live leave list
// ============================================================
func (h *LeaveHandler) Stream(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultWatchLimit)))
	if err != nil || limit < 1 || limit > pagination.MaxLimit {
		return response.BadRequest(c, "Invalid limit")
	}

	// The stream outlives the handler, so it gets its own context
	ctx, cancel := context.WithCancel(context.Background())
	snapshots, err := h.leaveService.Watch(ctx, sess, limit)
	if err != nil {
		cancel()
		return respondError(c, h.logger, err, "Failed to watch leaves")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		fmt.Fprintf(w, "event: connected\ndata: {\"hostel_id\":%q}\n\n", sess.HostelID)
		if err := w.Flush(); err != nil {
			return
		}

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case items, ok := <-snapshots:
				if !ok {
					return
				}
				payload, err := json.Marshal(items)
				if err != nil {
					h.logger.Error("encode leave snapshot", zap.Error(err))
					return
				}
				fmt.Fprintf(w, "event: leaves\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}

			case <-heartbeat.C:
				fmt.Fprintf(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					h.logger.Debug("leave stream client disconnected", zap.String("uid", sess.UID))
					return
				}
			}
		}
	})

	return nil
}
