package handlers

import (
	"errors"

	"hostelpg/internal/core/domain"
	"hostelpg/internal/core/services"
	"hostelpg/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// rejectionBody is the payload of a refused roll-call or movement
type rejectionBody struct {
	Reason        domain.RejectionReason `json:"reason"`
	NextSlotLabel string                 `json:"next_slot_label,omitempty"`
	Distance      float64                `json:"distance_meters,omitempty"`
}

// transitionBody is the payload of a refused leave action
type transitionBody struct {
	Status domain.LeaveStatus `json:"status"`
	Role   domain.Role        `json:"role"`
	Action domain.LeaveAction `json:"action"`
}

// respondError maps a service error to an HTTP response.
// Unknown errors are logged and answered with fallback as a 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error, fallback string) error {
	var (
		rejection  *domain.AttendanceRejection
		transition *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &rejection):
		return response.Rejected(c, fiber.StatusUnprocessableEntity, string(rejection.Reason), rejection.Error(), rejectionBody{
			Reason:        rejection.Reason,
			NextSlotLabel: rejection.NextSlotLabel,
			Distance:      rejection.Distance,
		})
	case errors.As(err, &transition):
		return response.Rejected(c, fiber.StatusConflict, "InvalidTransition", transition.Error(), transitionBody{
			Status: transition.From,
			Role:   transition.Actor,
			Action: transition.Action,
		})

	// Tenant & access
	case errors.Is(err, domain.ErrTenantMismatch),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrGuardianNotLinked),
		errors.Is(err, domain.ErrResidentInactive),
		errors.Is(err, domain.ErrNoTenant):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrHostelAlreadyAssigned),
		errors.Is(err, domain.ErrPhoneInUse),
		errors.Is(err, domain.ErrStaleResolution):
		return response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return response.Unauthorized(c, "Unauthorized")

	// Identity
	case errors.Is(err, domain.ErrIdentityResolution),
		errors.Is(err, domain.ErrResidentProfileMissing),
		errors.Is(err, domain.ErrUnknownRole):
		log.Warn("identity resolution failed", zap.Error(err))
		return response.ServiceUnavailable(c, "Could not resolve your account, please retry")

	// OTP
	case errors.Is(err, services.ErrOTPInvalid):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrOTPNotFound),
		errors.Is(err, services.ErrOTPExpired):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrOTPTooManyAttempts),
		errors.Is(err, services.ErrOTPCooldown):
		return response.Error(c, fiber.StatusTooManyRequests, err.Error())

	case errors.Is(err, domain.ErrNotificationQueueFull):
		return response.ServiceUnavailable(c, err.Error())
	default:
		log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
		return response.InternalServerError(c, fallback)
	}
}
