package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the user persistence used by AuthService
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStore persists issued refresh tokens
type RefreshTokenStore interface {
	Store(ctx context.Context, userID uuid.UUID, token, ipAddress, userAgent string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// AuthAuditor records authentication events
type AuthAuditor interface {
	LogLogin(ctx context.Context, userID *uuid.UUID, email string, success bool, reason string, client ClientInfo) error
	LogLogout(ctx context.Context, userID uuid.UUID, logoutAll bool, client ClientInfo) error
	LogTokenRefresh(ctx context.Context, userID uuid.UUID, success bool, client ClientInfo) error
}

// LoginLimiter throttles repeated failed logins
type LoginLimiter interface {
	CheckLoginRateLimit(ctx context.Context, email, ip string) error
	RecordFailedLogin(ctx context.Context, email, ip string) error
	ClearFailedLogins(ctx context.Context, email string) error
}

// AuthService handles registration, login and token refresh
type AuthService struct {
	users      UserStore
	tokens     RefreshTokenStore
	jwtService *jwt.Service
	audit      AuthAuditor
	limiter    LoginLimiter
	bcryptCost int
	logger     logrus.FieldLogger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens RefreshTokenStore, jwtService *jwt.Service, audit AuthAuditor, bcryptCost int, logger logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtService: jwtService,
		audit:      audit,
		bcryptCost: normalizeBcryptCost(bcryptCost),
		logger:     logger,
	}
}

// WithLoginLimiter enables failed-login throttling
func (s *AuthService) WithLoginLimiter(limiter LoginLimiter) *AuthService {
	s.limiter = limiter
	return s
}

// Register creates a household or company user and logs them in
func (s *AuthService) Register(ctx context.Context, in models.RegisterRequest, client ClientInfo) (*models.AuthResponse, error) {
	if in.Role != models.RoleHousehold && in.Role != models.RoleCompany {
		return nil, &FieldError{Field: "role", Reason: "must be household or company"}
	}
	hashed, err := hashPassword("password", in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Phone:        trimmedOrNil(in.Phone),
		PasswordHash: hashed,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return s.issue(ctx, user, client)
}

// Login authenticates by email and password
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*models.AuthResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.CheckLoginRateLimit(ctx, email, client.IPAddress); err != nil {
			var rateLimitErr *RateLimitError
			if errors.As(err, &rateLimitErr) {
				s.auditLogin(ctx, nil, email, false, "rate limited", client)
			}
			return nil, err
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		var userID *uuid.UUID
		if user != nil {
			userID = &user.ID
		}
		s.auditLogin(ctx, userID, email, false, "invalid credentials", client)
		if s.limiter != nil {
			if err := s.limiter.RecordFailedLogin(ctx, email, client.IPAddress); err != nil {
				s.logger.WithError(err).Warn("Failed to record failed login")
			}
		}
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		s.auditLogin(ctx, &user.ID, email, false, "account disabled", client)
		return nil, ErrAccountDisabled
	}

	resp, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}
	if s.limiter != nil {
		if err := s.limiter.ClearFailedLogins(ctx, email); err != nil {
			s.logger.WithError(err).Warn("Failed to clear failed logins")
		}
	}
	s.auditLogin(ctx, &user.ID, email, true, "", client)
	return resp, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*models.AuthResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	stored, err := s.tokens.Get(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !stored.IsUsable(time.Now()) {
		s.auditRefresh(ctx, claims.UserID, false, client)
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		s.auditRefresh(ctx, claims.UserID, false, client)
		return nil, ErrInvalidToken
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, err
	}

	resp, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.auditRefresh(ctx, user.ID, true, client)
	return resp, nil
}

// Logout revokes one refresh token, or every token of the user when all is set
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken string, all bool, client ClientInfo) error {
	var err error
	if all {
		err = s.tokens.RevokeAllForUser(ctx, userID)
	} else if refreshToken != "" {
		err = s.tokens.Revoke(ctx, refreshToken)
	}
	if err != nil {
		return err
	}

	if s.audit != nil {
		if err := s.audit.LogLogout(ctx, userID, all, client); err != nil {
			s.logger.WithError(err).Warn("Failed to write audit log")
		}
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User, client ClientInfo) (*models.AuthResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	if err := s.tokens.Store(ctx, user.ID, refreshToken, client.IPAddress, client.UserAgent, now.Add(s.jwtService.RefreshTokenExpiry())); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.jwtService.AccessTokenExpiry()),
		User:         user,
	}, nil
}

func (s *AuthService) auditLogin(ctx context.Context, userID *uuid.UUID, email string, success bool, reason string, client ClientInfo) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogLogin(ctx, userID, email, success, reason, client); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Warn("Failed to write audit log")
	}
}

func (s *AuthService) auditRefresh(ctx context.Context, userID uuid.UUID, success bool, client ClientInfo) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogTokenRefresh(ctx, userID, success, client); err != nil {
		s.logger.WithError(err).Warn("Failed to write audit log")
	}
}

const minPasswordLength = 8

func normalizeBcryptCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

// hashPassword enforces the minimum length and returns a bcrypt hash.
// field names the input in the validation error.
func hashPassword(field, password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", &FieldError{Field: field, Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
