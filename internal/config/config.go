package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode    string
	Port       string
	Database   DatabaseConfig
	JWT        JWTConfig
	Attendance AttendanceConfig
	Phone      PhoneConfig
	Push       PushConfig
	OTP        OTPConfig
	Reminder   ReminderConfig
	Seed       SeedConfig

	// EnvFileLoaded is false when no .env file was found
	EnvFileLoaded bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// AttendanceConfig holds roll-call window and geofence configuration
type AttendanceConfig struct {
	Timezone     string
	Location     *time.Location
	RadiusMeters float64
	// Bypass skips the time window and geofence checks, never the biometric
	Bypass bool
}

// PhoneConfig holds phone normalization settings
type PhoneConfig struct {
	CountryCode string
}

// PushConfig holds push delivery settings
type PushConfig struct {
	Enabled     bool
	Endpoint    string
	AccessToken string
	QueueSize   int
}

// OTPConfig holds phone verification settings
type OTPConfig struct {
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

// ReminderConfig holds roll-call reminder schedules
type ReminderConfig struct {
	Enabled     bool
	MorningSpec string
	EveningSpec string
}

// SeedConfig holds the dev demo hostel seed
type SeedConfig struct {
	AdminPhone string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (missing in production is fine)
	envLoaded := godotenv.Load() == nil

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	attendance, err := loadAttendanceConfig()
	if err != nil {
		return nil, err
	}
	otp, err := loadOTPConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:       appMode,
		Port:          getEnv("PORT", "3000"),
		Database:      loadDatabaseConfig(appMode),
		JWT:           loadJWTConfig(appMode),
		Attendance:    attendance,
		Phone:         PhoneConfig{CountryCode: strings.TrimPrefix(getEnv("PHONE_COUNTRY_CODE", "91"), "+")},
		Push:          loadPushConfig(),
		OTP:           otp,
		Reminder:      loadReminderConfig(),
		Seed:          SeedConfig{AdminPhone: getEnv("DEV_SEED_ADMIN_PHONE", "")},
		EnvFileLoaded: envLoaded,
	}

	if config.IsProd() && config.JWT.Secret == defaultJWTSecret {
		return nil, fmt.Errorf("PROD_JWT_SECRET must be set in prod mode")
	}

	// Set global config
	AppConfig = config
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "hostelpg"),
	}
}

const defaultJWTSecret = "default_secret"

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "10080"))

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", defaultJWTSecret),
		AccessTokenMins: accessMins,
	}
}

func loadAttendanceConfig() (AttendanceConfig, error) {
	tz := getEnv("ATTENDANCE_TIMEZONE", "Asia/Kolkata")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return AttendanceConfig{}, fmt.Errorf("invalid ATTENDANCE_TIMEZONE %q: %w", tz, err)
	}

	radius, err := strconv.ParseFloat(getEnv("ATTENDANCE_RADIUS_METERS", "80"), 64)
	if err != nil || radius <= 0 {
		return AttendanceConfig{}, fmt.Errorf("invalid ATTENDANCE_RADIUS_METERS %q", getEnv("ATTENDANCE_RADIUS_METERS", ""))
	}

	bypass, _ := strconv.ParseBool(getEnv("ATTENDANCE_BYPASS", "false"))

	return AttendanceConfig{
		Timezone:     tz,
		Location:     loc,
		RadiusMeters: radius,
		Bypass:       bypass,
	}, nil
}

func loadPushConfig() PushConfig {
	enabled, _ := strconv.ParseBool(getEnv("PUSH_ENABLED", "false"))
	queueSize, _ := strconv.Atoi(getEnv("PUSH_QUEUE_SIZE", "256"))

	return PushConfig{
		Enabled:     enabled,
		Endpoint:    getEnv("PUSH_ENDPOINT", ""),
		AccessToken: getEnv("PUSH_ACCESS_TOKEN", ""),
		QueueSize:   queueSize,
	}
}

func loadOTPConfig() (OTPConfig, error) {
	ttl, err := time.ParseDuration(getEnv("OTP_TTL", "5m"))
	if err != nil {
		return OTPConfig{}, fmt.Errorf("invalid OTP_TTL: %w", err)
	}
	cooldown, err := time.ParseDuration(getEnv("OTP_RESEND_COOLDOWN", "1m"))
	if err != nil {
		return OTPConfig{}, fmt.Errorf("invalid OTP_RESEND_COOLDOWN: %w", err)
	}
	attempts, _ := strconv.Atoi(getEnv("OTP_MAX_ATTEMPTS", "5"))

	return OTPConfig{TTL: ttl, Cooldown: cooldown, MaxAttempts: attempts}, nil
}

func loadReminderConfig() ReminderConfig {
	enabled, _ := strconv.ParseBool(getEnv("REMINDER_ENABLED", "true"))

	return ReminderConfig{
		Enabled:     enabled,
		MorningSpec: getEnv("REMINDER_MORNING_CRON", "0 7 * * *"),
		EveningSpec: getEnv("REMINDER_EVENING_CRON", "0 20 * * *"),
	}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://app.hostelpg.in"
	}
	return origins
}
