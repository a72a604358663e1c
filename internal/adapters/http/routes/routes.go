package routes

import (
	"hostelpg/internal/adapters/http/handlers"
	"hostelpg/internal/adapters/http/middleware"
	"hostelpg/internal/config"
	"hostelpg/internal/core/domain"
	"hostelpg/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services are the core services exposed over HTTP
type Services struct {
	OTP        *services.OTPService
	Auth       *services.AuthService
	Hostel     *services.HostelService
	Leave      *services.LeaveService
	Attendance *services.AttendanceService
	Community  *services.CommunityService

	// HealthCheck pings the database
	HealthCheck func() error
}

// Setup configures all routes for the application
func Setup(app *fiber.App, svc Services, cfg *config.Config, logger *zap.Logger) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(svc.HealthCheck)
	authHandler := handlers.NewAuthHandler(svc.OTP, svc.Auth, logger)
	hostelHandler := handlers.NewHostelHandler(svc.Hostel, logger)
	leaveHandler := handlers.NewLeaveHandler(svc.Leave, logger)
	attendanceHandler := handlers.NewAttendanceHandler(svc.Attendance, logger)
	communityHandler := handlers.NewCommunityHandler(svc.Community, logger)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	auth := middleware.AuthMiddleware(cfg, svc.Auth)

	// ============================================================
	// Auth
	// ============================================================
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/otp", middleware.AuthRateLimiter(), authHandler.RequestOTP)
	authRoutes.Post("/verify", middleware.AuthRateLimiter(), authHandler.Verify)
	authRoutes.Post("/refresh", auth, authHandler.Refresh)
	authRoutes.Post("/logout", auth, authHandler.Logout)

	// ============================================================
	// Users & hostels
	// ============================================================
	users := apiV1.Group("/users", auth)
	users.Get("/me", hostelHandler.Me)
	users.Put("/me/push-token", hostelHandler.UpdatePushToken)

	hostels := apiV1.Group("/hostels", auth)
	hostels.Post("/", middleware.StrictRateLimiter(), hostelHandler.RegisterHostel)
	hostels.Get("/me", middleware.AnyMember(), hostelHandler.GetMyHostel)

	residents := apiV1.Group("/residents", auth, middleware.AdminOnly())
	residents.Post("/", hostelHandler.RegisterResident)
	residents.Get("/", hostelHandler.ListResidents)
	residents.Patch("/:id/offboard", hostelHandler.OffboardResident)

	// ============================================================
	// Leaves
	// ============================================================
	leaves := apiV1.Group("/leaves", auth, middleware.AnyMember())
	leaves.Post("/", middleware.ResidentOnly(), leaveHandler.Submit)
	leaves.Get("/", leaveHandler.List)
	leaves.Get("/latest", leaveHandler.Latest)
	leaves.Get("/stream", leaveHandler.Stream)
	leaves.Post("/:id/approve", middleware.RequireRoles(domain.RoleGuardian, domain.RoleAdmin), leaveHandler.Approve)
	leaves.Post("/:id/reject", middleware.RequireRoles(domain.RoleGuardian, domain.RoleAdmin), leaveHandler.Reject)

	// ============================================================
	// Attendance & movements
	// ============================================================
	attendance := apiV1.Group("/attendance", auth, middleware.AnyMember())
	attendance.Get("/window", attendanceHandler.Window)
	attendance.Post("/roll-call", middleware.ResidentOnly(), attendanceHandler.MarkRollCall)
	attendance.Get("/", attendanceHandler.History)

	movements := apiV1.Group("/movements", auth, middleware.AnyMember())
	movements.Post("/", middleware.ResidentOnly(), attendanceHandler.MarkMovement)
	movements.Get("/status", attendanceHandler.WardStatus)

	// ============================================================
	// Complaints & broadcasts
	// ============================================================
	complaints := apiV1.Group("/complaints", auth, middleware.AnyMember())
	complaints.Post("/", middleware.ResidentOnly(), communityHandler.FileComplaint)
	complaints.Get("/", communityHandler.ListComplaints)
	complaints.Patch("/:id/resolve", middleware.AdminOnly(), communityHandler.ResolveComplaint)

	broadcasts := apiV1.Group("/broadcasts", auth, middleware.AnyMember())
	broadcasts.Post("/", middleware.AdminOnly(), communityHandler.PostBroadcast)
	broadcasts.Get("/", communityHandler.ListBroadcasts)
}
