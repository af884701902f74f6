package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sadiqgoni/GreenCycle/internal/database"
)

// RateLimitService throttles failed logins per email and per client IP
type RateLimitService struct {
	db     database.DB
	config RateLimitConfig
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: config,
	}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxEmailFailures int           // Max failed logins per email
	EmailWindow      time.Duration // Time window for email rate limit
	MaxIPFailures    int           // Max failed logins per IP
	IPWindow         time.Duration // Time window for IP rate limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailFailures: 5,                // 5 failures
		EmailWindow:      15 * time.Minute, // per 15 minutes
		MaxIPFailures:    20,               // 20 failures
		IPWindow:         1 * time.Hour,    // per hour
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckLoginRateLimit returns a *RateLimitError when email or ip has too
// many recent failed logins
func (s *RateLimitService) CheckLoginRateLimit(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)

	if email != "" {
		count, last, err := s.getFailureCount(ctx, email, "email", s.config.EmailWindow)
		if err != nil {
			return fmt.Errorf("failed to check email rate limit: %w", err)
		}
		if count >= s.config.MaxEmailFailures {
			retryAfter := last.Add(s.config.EmailWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed login attempts for this account. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "email",
			}
		}
	}

	if ip != "" {
		count, last, err := s.getFailureCount(ctx, ip, "ip", s.config.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if count >= s.config.MaxIPFailures {
			retryAfter := last.Add(s.config.IPWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed login attempts from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}

	return nil
}

// getFailureCount gets the number of failures within the time window
func (s *RateLimitService) getFailureCount(ctx context.Context, identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM login_attempts
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var count int
	var last time.Time
	err := s.db.QueryRowxContext(ctx, query, identifier, identifierType, time.Now().Add(-window)).Scan(&count, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}

	return count, last, nil
}

// RecordFailedLogin records a failed login against email and ip
func (s *RateLimitService) RecordFailedLogin(ctx context.Context, email, ip string) error {
	if email = normalizeEmail(email); email != "" {
		if err := s.recordFailure(ctx, email, "email"); err != nil {
			return fmt.Errorf("failed to record email failure: %w", err)
		}
	}

	if ip != "" {
		if err := s.recordFailure(ctx, ip, "ip"); err != nil {
			return fmt.Errorf("failed to record IP failure: %w", err)
		}
	}

	return nil
}

func (s *RateLimitService) recordFailure(ctx context.Context, identifier, identifierType string) error {
	query := `
		INSERT INTO login_attempts (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, identifier, identifierType)
	return err
}

// ClearFailedLogins forgets failures for email after a successful login.
// IP failures are kept.
func (s *RateLimitService) ClearFailedLogins(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	query := `DELETE FROM login_attempts WHERE identifier = $1 AND identifier_type = 'email'`
	if _, err := s.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("failed to clear login failures: %w", err)
	}
	return nil
}

// CleanupExpiredRateLimits removes records older than the longest window
func (s *RateLimitService) CleanupExpiredRateLimits(ctx context.Context) (int64, error) {
	maxWindow := s.config.IPWindow
	if s.config.EmailWindow > maxWindow {
		maxWindow = s.config.EmailWindow
	}

	query := `
		DELETE FROM login_attempts
		WHERE created_at < $1
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
