package handlers

import (
	"hostelpg/internal/config"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	check func() error
}

// NewHealthHandler creates a new health handler; check pings the database
func NewHealthHandler(check func() error) *HealthHandler {
	return &HealthHandler{check: check}
}

// Root handles root endpoint
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	mode := ""
	if config.AppConfig != nil {
		mode = config.AppConfig.AppMode
	}
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "HostelPG API v1.0 is running",
		"mode":    mode,
	})
}

// HealthCheck handles health check
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	// Check database
	dbStatus := "healthy"
	if h.check != nil {
		if err := h.check(); err != nil {
			dbStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": "ok",
		"checks": fiber.Map{
			"api":      "healthy",
			"database": dbStatus,
		},
	})
}

// APIInfo handles API v1 info
func (h *HealthHandler) APIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "HostelPG API v1.0",
		"version": "1.0.0",
	})
}
