package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the admin review state of a company
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusApproved VerificationStatus = "approved"
	VerificationStatusRejected VerificationStatus = "rejected"
	// VerificationStatusVerified is the legacy spelling of approved
	VerificationStatusVerified VerificationStatus = "verified"
)

// AvailabilityStatus tells whether a company takes new jobs
type AvailabilityStatus string

const (
	AvailabilityOpen   AvailabilityStatus = "open"
	AvailabilityClosed AvailabilityStatus = "closed"
)

// IsValid reports whether a is a known availability status
func (a AvailabilityStatus) IsValid() bool {
	return a == AvailabilityOpen || a == AvailabilityClosed
}

// Company is a waste collection company operated by a company user
type Company struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	UserID             uuid.UUID          `json:"user_id" db:"user_id"`
	CompanyName        string             `json:"company_name" db:"company_name"`
	RegistrationNumber *string            `json:"registration_number,omitempty" db:"registration_number"`
	Email              *string            `json:"email,omitempty" db:"email"`
	Phone              string             `json:"phone" db:"phone"`
	Address            string             `json:"address" db:"address"`
	ServiceArea        *string            `json:"service_area,omitempty" db:"service_area"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status" db:"availability_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty" db:"verified_at"`
	VerifiedBy         *uuid.UUID         `json:"verified_by,omitempty" db:"verified_by"`
	RejectionReason    *string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// IsVerified reports whether an admin approved the company
func (c *Company) IsVerified() bool {
	if c == nil {
		return false
	}
	return c.VerificationStatus == VerificationStatusApproved || c.VerificationStatus == VerificationStatusVerified
}

// IsOpen reports whether the company accepts new assignments
func (c *Company) IsOpen() bool {
	return c != nil && c.AvailabilityStatus == AvailabilityOpen
}

// RegisterCompanyRequest is submitted by a company user
type RegisterCompanyRequest struct {
	CompanyName        string  `json:"company_name" binding:"required,max=255"`
	RegistrationNumber *string `json:"registration_number" binding:"omitempty,max=100"`
	Email              *string `json:"email" binding:"omitempty,email"`
	Phone              string  `json:"phone" binding:"required"`
	Address            string  `json:"address" binding:"required,max=255"`
	ServiceArea        *string `json:"service_area" binding:"omitempty,max=255"`
}

// UpdateAvailabilityRequest toggles whether a company takes new jobs
type UpdateAvailabilityRequest struct {
	AvailabilityStatus AvailabilityStatus `json:"availability_status" binding:"required,oneof=open closed"`
}

// RejectCompanyRequest carries the admin's reason
type RejectCompanyRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CompanyFilter scopes admin listings
type CompanyFilter struct {
	VerificationStatus *VerificationStatus
	Limit              int
	Offset             int
}
