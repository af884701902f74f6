package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Security   SecurityConfig
	Settlement SettlementConfig
	SMS        SMSConfig
	Redis      RedisConfig
	Cron       CronConfig
	Admin      AdminConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
	EnableAuditLog   bool
	LoginMaxFailures int
	LoginWindow      time.Duration
}

// SettlementConfig controls commission processing and exports
type SettlementConfig struct {
	DefaultCommissionPercentage decimal.Decimal
	Currency                    string
}

// SMSConfig holds the outbound SMS gateway configuration.
// Mode "dev" logs messages instead of sending them.
type SMSConfig struct {
	Mode     string
	APIURL   string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

// RedisConfig enables per-request write locks when URL is set
type RedisConfig struct {
	URL       string
	KeyPrefix string
	LockTTL   time.Duration
}

// AdminConfig seeds the first admin account on startup when Email is set
type AdminConfig struct {
	BootstrapName     string
	BootstrapEmail    string
	BootstrapPassword string
}

// CronConfig holds schedules for background jobs
type CronConfig struct {
	Enabled            bool
	MetricsSchedule    string
	SweepSchedule      string
	StaleAssignmentAge time.Duration
	PendingPaymentAge  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			Issuer:             getEnv("JWT_ISSUER", "greencycle"),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
			LoginMaxFailures: getEnvAsInt("LOGIN_MAX_FAILURES", 5),
			LoginWindow:      time.Duration(getEnvAsInt("LOGIN_WINDOW_MINUTES", 15)) * time.Minute,
		},
		Settlement: SettlementConfig{
			DefaultCommissionPercentage: getEnvAsDecimal("DEFAULT_COMMISSION_PERCENTAGE", decimal.NewFromInt(10)),
			Currency:                    getEnv("SETTLEMENT_CURRENCY", "NGN"),
		},
		SMS: SMSConfig{
			Mode:     getEnv("SMS_MODE", "dev"),
			APIURL:   getEnv("SMS_API_URL", ""),
			APIKey:   getEnv("SMS_API_KEY", ""),
			SenderID: getEnv("SMS_SENDER_ID", "GreenCycle"),
			Timeout:  time.Duration(getEnvAsInt("SMS_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_LOCK_PREFIX", "greencycle:lock:service-request:"),
			LockTTL:   time.Duration(getEnvAsInt("REDIS_LOCK_TTL_SECONDS", 15)) * time.Second,
		},
		Cron: CronConfig{
			Enabled:            getEnvAsBool("CRON_ENABLED", true),
			MetricsSchedule:    getEnv("CRON_METRICS_SCHEDULE", "@every 1m"),
			SweepSchedule:      getEnv("CRON_SWEEP_SCHEDULE", "0 7 * * *"),
			StaleAssignmentAge: time.Duration(getEnvAsInt("STALE_ASSIGNMENT_HOURS", 48)) * time.Hour,
			PendingPaymentAge:  time.Duration(getEnvAsInt("PENDING_PAYMENT_HOURS", 72)) * time.Hour,
		},
		Admin: AdminConfig{
			BootstrapName:     getEnv("ADMIN_BOOTSTRAP_NAME", "GreenCycle Admin"),
			BootstrapEmail:    getEnv("ADMIN_BOOTSTRAP_EMAIL", ""),
			BootstrapPassword: getEnv("ADMIN_BOOTSTRAP_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if err := lifecycle.ValidatePercentage(c.Settlement.DefaultCommissionPercentage); err != nil {
		return fmt.Errorf("DEFAULT_COMMISSION_PERCENTAGE %w", err)
	}

	if c.Admin.BootstrapEmail != "" && len(c.Admin.BootstrapPassword) < 8 {
		return fmt.Errorf("ADMIN_BOOTSTRAP_PASSWORD must be at least 8 characters when ADMIN_BOOTSTRAP_EMAIL is set")
	}

	if c.SMS.Mode == "production" {
		if c.SMS.APIURL == "" {
			return fmt.Errorf("SMS_API_URL is required in production mode")
		}
		if c.SMS.APIKey == "" {
			return fmt.Errorf("SMS_API_KEY is required in production mode")
		}
	} else if c.SMS.Mode != "dev" {
		return fmt.Errorf("invalid SMS mode: %s (must be 'dev' or 'production')", c.SMS.Mode)
	}

	return nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		log.Printf("Invalid decimal value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
