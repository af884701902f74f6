package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/utils"
)

// ClientInfo identifies where a request came from
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Audit entity types
const (
	EntityServiceRequest = "service_request"
	EntityUser           = "user"
	EntityToken          = "token"
	EntityCompany        = "company"
)

// AuditService writes security and lifecycle events to audit_logs
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID // nil for pre-authentication events
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	Client     ClientInfo
	Details    models.JSONMap
}

// TransitionAudit describes one attempted lifecycle action
type TransitionAudit struct {
	ActorID   uuid.UUID
	ActorRole models.UserRole
	RequestID uuid.UUID
	Action    string
	From      models.ServiceRequestStatus
	To        models.ServiceRequestStatus
	Result    string
	Reason    string
	// ReleasedCompanyID is set when a cancellation unbinds a company
	ReleasedCompanyID *uuid.UUID
	Client            ClientInfo
}

// LogTransition records an accepted or rejected lifecycle action
func (s *AuditService) LogTransition(ctx context.Context, t TransitionAudit) error {
	details := models.JSONMap{
		"actor_role":  t.ActorRole,
		"from":        t.From,
		"result":      t.Result,
		"device_info": utils.ParseUserAgent(t.Client.UserAgent),
	}
	if t.To != "" {
		details["to"] = t.To
	}
	if t.Reason != "" {
		details["reason"] = t.Reason
	}
	if t.ReleasedCompanyID != nil {
		details["released_company_id"] = t.ReleasedCompanyID.String()
	}

	actorID := t.ActorID
	requestID := t.RequestID
	return s.logEvent(ctx, AuditEvent{
		UserID:     &actorID,
		Action:     "service_request." + t.Action,
		EntityType: EntityServiceRequest,
		EntityID:   &requestID,
		Client:     t.Client,
		Details:    details,
	})
}

// LogLogin logs a login attempt
func (s *AuditService) LogLogin(ctx context.Context, userID *uuid.UUID, email string, success bool, reason string, client ClientInfo) error {
	details := models.JSONMap{
		"email":       email,
		"success":     success,
		"device_info": utils.ParseUserAgent(client.UserAgent),
	}
	if reason != "" {
		details["reason"] = reason
	}

	action := "login_failed"
	if success {
		action = "login"
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     action,
		EntityType: EntityUser,
		EntityID:   userID,
		Client:     client,
		Details:    details,
	})
}

// LogLogout logs a logout event
func (s *AuditService) LogLogout(ctx context.Context, userID uuid.UUID, logoutAll bool, client ClientInfo) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     "logout",
		EntityType: EntityUser,
		EntityID:   &userID,
		Client:     client,
		Details: models.JSONMap{
			"logout_all":  logoutAll,
			"device_info": utils.ParseUserAgent(client.UserAgent),
		},
	})
}

// LogTokenRefresh logs a refresh token usage event
func (s *AuditService) LogTokenRefresh(ctx context.Context, userID uuid.UUID, success bool, client ClientInfo) error {
	action := "token_refresh_success"
	if !success {
		action = "token_refresh_failed"
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     action,
		EntityType: EntityToken,
		Client:     client,
		Details: models.JSONMap{
			"success":     success,
			"device_info": utils.ParseUserAgent(client.UserAgent),
		},
	})
}

// LogAdminCreated logs a new admin account. createdBy is nil for bootstrap.
func (s *AuditService) LogAdminCreated(ctx context.Context, adminID uuid.UUID, createdBy *uuid.UUID, client ClientInfo) error {
	details := models.JSONMap{"bootstrap": createdBy == nil}
	return s.logEvent(ctx, AuditEvent{
		UserID:     createdBy,
		Action:     "admin_created",
		EntityType: EntityUser,
		EntityID:   &adminID,
		Client:     client,
		Details:    details,
	})
}

// LogPasswordChanged logs a password change
func (s *AuditService) LogPasswordChanged(ctx context.Context, userID uuid.UUID, client ClientInfo) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     "password_changed",
		EntityType: EntityUser,
		EntityID:   &userID,
		Client:     client,
		Details: models.JSONMap{
			"device_info": utils.ParseUserAgent(client.UserAgent),
		},
	})
}

// LogCompanyVerification logs an admin approve/reject decision
func (s *AuditService) LogCompanyVerification(ctx context.Context, adminID, companyID uuid.UUID, status models.VerificationStatus, reason string, client ClientInfo) error {
	details := models.JSONMap{"verification_status": status}
	if reason != "" {
		details["reason"] = reason
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     &adminID,
		Action:     "company_verification",
		EntityType: EntityCompany,
		EntityID:   &companyID,
		Client:     client,
		Details:    details,
	})
}

// logEvent writes to the audit_logs table
func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) error {
	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := s.db.ExecContext(ctx, query,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		nullIfEmpty(event.Client.IPAddress),
		nullIfEmpty(event.Client.UserAgent),
		event.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// ListForEntity returns the newest audit events recorded against one entity
func (s *AuditService) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	logs := []models.AuditLog{}
	if err := s.db.SelectContext(ctx, &logs, query, entityType, entityID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return logs, nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
