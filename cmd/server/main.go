package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostelpg/internal/adapters/http/middleware"
	"hostelpg/internal/adapters/http/routes"
	"hostelpg/internal/adapters/persistence/models"
	"hostelpg/internal/adapters/persistence/repositories"
	"hostelpg/internal/config"
	"hostelpg/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	otpCleanupInterval     = time.Minute
	sessionCleanupInterval = time.Hour
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.EnvFileLoaded {
		logger.Warn(".env file not found, using environment variables")
	}
	logger.Info("configuration loaded", zap.String("mode", cfg.AppMode))
	if cfg.Attendance.Bypass {
		logger.Warn("attendance bypass is ON: time window and geofence checks are skipped")
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables and the composite indexes queries rely on)
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal("failed to auto migrate", zap.Error(err))
	}
	logger.Info("database migration completed")

	// Seed dev data
	if err := config.NewSeeder(db, cfg, logger).Run(); err != nil {
		logger.Warn("seeding failed", zap.Error(err))
	}

	// Build services and background workers
	app := buildApp(db, cfg, logger)
	defer app.stop()

	// Create Fiber app
	server := fiber.New(fiber.Config{
		AppName:      "HostelPG API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(server, cfg)

	// Setup routes
	routes.Setup(server, app.services, cfg, logger)

	// Graceful shutdown
	go gracefulShutdown(server, logger)

	// Start server
	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := server.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// application holds the wired services and the workers to stop on shutdown
type application struct {
	services  routes.Services
	notifier  *services.Notifier
	reminders *services.ReminderService
	otp       *services.OTPService
	auth      *services.AuthService
}

func buildApp(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *application {
	// Initialize repositories
	feed := repositories.NewChangeFeed(logger)
	userRepo := repositories.NewUserRepository(db)
	hostelRepo := repositories.NewHostelRepository(db)
	identityRepo := repositories.NewAuthIdentityRepository(db)
	sessionRepo := repositories.NewDeviceSessionRepository(db)
	residentRepo := repositories.NewResidentRepository(db, feed, logger)
	leaveRepo := repositories.NewLeaveRepository(db, feed, logger)
	attendanceRepo := repositories.NewAttendanceRepository(db, feed, logger)
	movementRepo := repositories.NewMovementRepository(db, feed, logger)
	complaintRepo := repositories.NewComplaintRepository(db, feed, logger)
	broadcastRepo := repositories.NewBroadcastRepository(db, feed, logger)

	// Notifications
	var provider services.PushProvider = services.NewLogPushProvider(logger)
	if cfg.Push.Enabled {
		provider = services.NewExpoPushProvider(cfg.Push.Endpoint, cfg.Push.AccessToken)
	}
	notifier := services.NewNotifier(provider, cfg.Push.QueueSize, logger)
	notifier.Start()

	// Identity & sign-in
	otpService := services.NewOTPService(identityRepo, services.NewLogSMSSender(logger), services.OTPOptions{
		TTL:         cfg.OTP.TTL,
		Cooldown:    cfg.OTP.Cooldown,
		MaxAttempts: cfg.OTP.MaxAttempts,
		CountryCode: cfg.Phone.CountryCode,
	}, logger)
	otpService.StartCleanup(otpCleanupInterval)

	identityService := services.NewIdentityService(userRepo, cfg.Phone.CountryCode, logger)
	authService := services.NewAuthService(otpService, identityService, services.NewResolutionTracker(), sessionRepo,
		cfg.JWT.Secret, cfg.JWT.AccessTokenMins, logger)
	authService.StartCleanup(sessionCleanupInterval)

	// Hostel workflows
	hostelService := services.NewHostelService(hostelRepo, residentRepo, userRepo, cfg.Phone.CountryCode, logger)
	leaveService := services.NewLeaveService(leaveRepo, residentRepo, userRepo, notifier, logger)
	attendanceService := services.NewAttendanceService(attendanceRepo, movementRepo, residentRepo, hostelRepo, userRepo, notifier,
		services.AttendanceOptions{
			Location:     cfg.Attendance.Location,
			RadiusMeters: cfg.Attendance.RadiusMeters,
			Bypass:       cfg.Attendance.Bypass,
		}, logger)
	communityService := services.NewCommunityService(complaintRepo, broadcastRepo, residentRepo, userRepo, notifier, logger)

	// Roll-call reminders
	var reminders *services.ReminderService
	if cfg.Reminder.Enabled {
		reminders = services.NewReminderService(hostelRepo, residentRepo, userRepo, notifier, cfg.Attendance.Location, logger)
		if err := reminders.Schedule(cfg.Reminder.MorningSpec, cfg.Reminder.EveningSpec); err != nil {
			logger.Fatal("failed to schedule reminders", zap.Error(err))
		}
		reminders.Start()
	}

	return &application{
		services: routes.Services{
			OTP:         otpService,
			Auth:        authService,
			Hostel:      hostelService,
			Leave:       leaveService,
			Attendance:  attendanceService,
			Community:   communityService,
			HealthCheck: config.HealthCheck,
		},
		notifier:  notifier,
		reminders: reminders,
		otp:       otpService,
		auth:      authService,
	}
}

func (a *application) stop() {
	if a.reminders != nil {
		a.reminders.Stop()
	}
	a.otp.Stop()
	a.auth.Stop()
	a.notifier.Stop()
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(server *fiber.App, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	if err := server.Shutdown(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}
