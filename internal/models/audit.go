package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is a row of the audit_logs table
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty" db:"entity_id"`
	IPAddress  *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string    `json:"user_agent,omitempty" db:"user_agent"`
	Details    JSONMap    `json:"details" db:"details"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// DashboardStats backs the admin dashboard widgets
type DashboardStats struct {
	RequestsByStatus    map[ServiceRequestStatus]int64 `json:"requests_by_status"`
	CompaniesByStatus   map[VerificationStatus]int64   `json:"companies_by_verification_status"`
	PendingPayments     int64                          `json:"pending_payments"`
	CommissionCollected string                         `json:"commission_collected"`
	PayoutsOwed         string                         `json:"payouts_owed"`
	Currency            string                         `json:"currency"`
}
