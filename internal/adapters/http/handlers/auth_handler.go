package handlers

import (
	"strings"

	"hostelpg/internal/adapters/http/middleware"
	"hostelpg/internal/core/services"
	"hostelpg/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles phone sign-in endpoints
type AuthHandler struct {
	otpService  *services.OTPService
	authService *services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(otpService *services.OTPService, authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		otpService:  otpService,
		authService: authService,
		logger:      logger,
	}
}

// OTPRequest represents an OTP request body
type OTPRequest struct {
	Phone string `json:"phone"`
}

// VerifyRequest represents an OTP confirmation body
type VerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
	DeviceID    string `json:"device_id"`
}

// RequestOTP sends a one-time code to a phone
// @Summary Request OTP
// @Description Send a one-time code by SMS and return the challenge id
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body OTPRequest true "Phone number"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/otp [post]
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req OTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return response.BadRequest(c, "Phone is required")
	}

	challengeID, err := h.otpService.VerifyPhone(c.Context(), req.Phone)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to send code")
	}

	return response.Success(c, "Code sent", fiber.Map{
		"challenge_id": challengeID,
	})
}

// Verify confirms the code and signs the device in
// @Summary Verify OTP
// @Description Confirm the code, resolve the account and return a session token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body VerifyRequest true "Challenge and code"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Validate required fields
	if req.ChallengeID == "" || req.Code == "" {
		return response.BadRequest(c, "Challenge id and code are required")
	}
	if req.DeviceID == "" {
		return response.BadRequest(c, "Device id is required")
	}

	result, err := h.authService.Login(c.Context(), req.DeviceID, req.ChallengeID, strings.TrimSpace(req.Code))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to sign in")
	}

	return response.Success(c, "Login successful", result)
}

// Refresh re-reads the account and issues a new token, e.g. after joining a hostel
// @Summary Refresh session
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	sess, _ := middleware.CurrentSession(c)

	result, err := h.authService.Refresh(c.Context(), middleware.CurrentDevice(c), sess)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to refresh session")
	}

	return response.Success(c, "Session refreshed", result)
}

// Logout ends the device's session; its token stops working
// @Summary Logout
// @Tags Auth
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.Context(), middleware.CurrentDevice(c), middleware.CurrentSessionID(c)); err != nil {
		return respondError(c, h.logger, err, "Failed to log out")
	}
	return response.Success(c, "Logged out", nil)
}
