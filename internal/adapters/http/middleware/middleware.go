package middleware

import (
	"errors"
	"strings"
	"time"

	"hostelpg/internal/config"
	"hostelpg/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	allowedMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	allowedHeaders = "Origin,Content-Type,Accept,Authorization"
)

// rateLimit describes one per-IP limiter bucket
type rateLimit struct {
	bucket  string
	max     int
	window  time.Duration
	message string
}

var (
	apiLimit    = rateLimit{bucket: "api", max: 120, window: time.Minute, message: "Too many requests, retry in a minute"}
	authLimit   = rateLimit{bucket: "auth", max: 5, window: time.Minute, message: "Too many sign-in attempts, wait a minute"}
	strictLimit = rateLimit{bucket: "strict", max: 3, window: time.Minute, message: "Please wait before retrying"}
)

func (r rateLimit) handler() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        r.max,
		Expiration: r.window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "-" + r.bucket
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, r.message)
		},
	})
}

// isStream reports whether the request opens a server-sent event stream
func isStream(c *fiber.Ctx) bool {
	return strings.HasSuffix(c.Path(), "/stream")
}

// Setup configures all middlewares for the application
func Setup(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New())

	// event streams are flushed per event and must stay uncompressed
	app.Use(compress.New(compress.Config{
		Next:  isStream,
		Level: compress.LevelBestSpeed,
	}))

	// geolocation stays allowed: roll-call reads the device position
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "SAMEORIGIN",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		PermissionPolicy:          "microphone=(), camera=()",
	}))

	app.Use(apiLimit.handler())

	format := "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n"
	if !cfg.IsDev() {
		format = "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n"
	}
	app.Use(logger.New(logger.Config{
		Format:     format,
		TimeFormat: "2006-01-02 15:04:05",
	}))

	origins := cfg.GetAllowedOrigins()
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: allowedMethods,
		AllowHeaders: allowedHeaders,
		// credentials cannot be combined with a wildcard origin
		AllowCredentials: origins != "*",
	}))
}

// AuthRateLimiter limits OTP requests and verification per IP
func AuthRateLimiter() fiber.Handler {
	return authLimit.handler()
}

// StrictRateLimiter limits rare, sensitive operations such as hostel registration
func StrictRateLimiter() fiber.Handler {
	return strictLimit.handler()
}

// CustomErrorHandler renders errors that escaped a handler in the standard envelope
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		return response.Error(c, e.Code, e.Message)
	}
	return response.InternalServerError(c, "Internal Server Error")
}
