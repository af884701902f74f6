package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminStore is the user persistence used by AdminService
type AdminStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// AdminAuditor records admin account changes
type AdminAuditor interface {
	LogAdminCreated(ctx context.Context, adminID uuid.UUID, createdBy *uuid.UUID, client ClientInfo) error
	LogPasswordChanged(ctx context.Context, userID uuid.UUID, client ClientInfo) error
}

// AdminService manages admin accounts and password changes
type AdminService struct {
	users      AdminStore
	tokens     RefreshTokenStore
	audit      AdminAuditor
	bcryptCost int
	logger     logrus.FieldLogger
}

// NewAdminService creates a new admin service. tokens and audit may be nil.
func NewAdminService(users AdminStore, tokens RefreshTokenStore, audit AdminAuditor, bcryptCost int, logger logrus.FieldLogger) *AdminService {
	return &AdminService{
		users:      users,
		tokens:     tokens,
		audit:      audit,
		bcryptCost: normalizeBcryptCost(bcryptCost),
		logger:     logger,
	}
}

// CreateAdmin creates an admin account. createdBy is nil when seeding.
func (s *AdminService) CreateAdmin(ctx context.Context, in models.CreateAdminRequest, createdBy *uuid.UUID, client ClientInfo) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &FieldError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, &FieldError{Field: "email", Reason: "is required"}
	}

	hashed, err := hashPassword("password", in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	admin := &models.User{
		Name:         name,
		Email:        in.Email,
		Phone:        trimmedOrNil(in.Phone),
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.LogAdminCreated(ctx, admin.ID, createdBy, client); err != nil {
			s.logger.WithError(err).Warn("Failed to write audit log")
		}
	}
	s.logger.WithFields(logrus.Fields{"user_id": admin.ID, "created_by": createdBy}).Info("Admin created")
	return admin, nil
}

// EnsureBootstrapAdmin creates the first admin when none exists yet.
// It reports whether an account was created.
func (s *AdminService) EnsureBootstrapAdmin(ctx context.Context, name, email, password string) (bool, error) {
	count, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.CreateAdmin(ctx, models.CreateAdminRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, nil, ClientInfo{}); err != nil {
		return false, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return true, nil
}

// ListAdmins returns all admin accounts
func (s *AdminService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.users.ListByRole(ctx, models.RoleAdmin)
}

// ChangePassword replaces the caller's password after checking the current
// one. All refresh tokens of the user are revoked.
func (s *AdminService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string, client ClientInfo) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredential
	}
	if currentPassword == newPassword {
		return &FieldError{Field: "new_password", Reason: "must differ from the current password"}
	}

	hashed, err := hashPassword("new_password", newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hashed); err != nil {
		return err
	}

	if s.tokens != nil {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to revoke refresh tokens")
		}
	}
	if s.audit != nil {
		if err := s.audit.LogPasswordChanged(ctx, userID, client); err != nil {
			s.logger.WithError(err).Warn("Failed to write audit log")
		}
	}
	s.logger.WithField("user_id", userID).Info("Password changed")
	return nil
}
