package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ServiceRequestStatus is the lifecycle state of a waste collection request
type ServiceRequestStatus string

const (
	ServiceRequestStatusPending    ServiceRequestStatus = "pending"
	ServiceRequestStatusAssigned   ServiceRequestStatus = "assigned"
	ServiceRequestStatusAccepted   ServiceRequestStatus = "accepted"
	ServiceRequestStatusInProgress ServiceRequestStatus = "in_progress"
	ServiceRequestStatusCompleted  ServiceRequestStatus = "completed"
	// ServiceRequestStatusPaid exists in the schema but no transition reaches it.
	// Payment confirmation is tracked on PaymentStatus instead.
	ServiceRequestStatusPaid      ServiceRequestStatus = "paid"
	ServiceRequestStatusCancelled ServiceRequestStatus = "cancelled"
)

// AllServiceRequestStatuses lists statuses in lifecycle order
var AllServiceRequestStatuses = []ServiceRequestStatus{
	ServiceRequestStatusPending,
	ServiceRequestStatusAssigned,
	ServiceRequestStatusAccepted,
	ServiceRequestStatusInProgress,
	ServiceRequestStatusCompleted,
	ServiceRequestStatusPaid,
	ServiceRequestStatusCancelled,
}

// IsValid reports whether s is a known status
func (s ServiceRequestStatus) IsValid() bool {
	for _, known := range AllServiceRequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// HasCompany reports whether a request in this status carries an assigned company
func (s ServiceRequestStatus) HasCompany() bool {
	switch s {
	case ServiceRequestStatusAssigned, ServiceRequestStatusAccepted, ServiceRequestStatusInProgress,
		ServiceRequestStatusCompleted, ServiceRequestStatusPaid:
		return true
	}
	return false
}

// RequestPaymentStatus is the settlement flag kept on the request itself
type RequestPaymentStatus string

const (
	RequestPaymentStatusPending  RequestPaymentStatus = "pending"
	RequestPaymentStatusPaid     RequestPaymentStatus = "paid"
	RequestPaymentStatusReleased RequestPaymentStatus = "released"
)

// ServiceRequest is a household's request for waste collection and the
// aggregate root of the collection and settlement lifecycle
type ServiceRequest struct {
	ID          uuid.UUID `json:"id" db:"id"`
	HouseholdID uuid.UUID `json:"household_id" db:"household_id"`

	// Assignment
	CompanyID     *uuid.UUID `json:"company_id,omitempty" db:"company_id"`
	CompanyUserID *uuid.UUID `json:"company_user_id,omitempty" db:"company_user_id"`

	// Household form
	WasteType     string     `json:"waste_type" db:"waste_type"`
	Description   *string    `json:"description,omitempty" db:"description"`
	Quantity      *string    `json:"quantity,omitempty" db:"quantity"`
	PreferredDate *time.Time `json:"preferred_date,omitempty" db:"preferred_date"`
	PreferredTime *string    `json:"preferred_time,omitempty" db:"preferred_time"`
	ClientNumber  string     `json:"client_number" db:"client_number"`
	Address       string     `json:"address" db:"address"`

	Status ServiceRequestStatus `json:"status" db:"status"`

	// Company acceptance
	ScheduledDate     *time.Time          `json:"scheduled_date,omitempty" db:"scheduled_date"`
	ScheduledTime     *string             `json:"scheduled_time,omitempty" db:"scheduled_time"`
	CompanyNotes      *string             `json:"company_notes,omitempty" db:"company_notes"`
	EstimatedDuration decimal.NullDecimal `json:"estimated_duration" db:"estimated_duration"`
	EstimatedCost     decimal.NullDecimal `json:"estimated_cost" db:"estimated_cost"`

	// Work
	StartedAt        *time.Time          `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	FinalAmount      decimal.NullDecimal `json:"final_amount" db:"final_amount"`
	CompletionNotes  *string             `json:"completion_notes,omitempty" db:"completion_notes"`
	CompletionPhotos pq.StringArray      `json:"completion_photos" db:"completion_photos"`

	// Settlement
	PaymentStatus        RequestPaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentReceivedAt    *time.Time           `json:"payment_received_at,omitempty" db:"payment_received_at"`
	CommissionPercentage decimal.NullDecimal  `json:"admin_commission_percentage" db:"admin_commission_percentage"`
	CommissionAmount     decimal.NullDecimal  `json:"admin_commission_amount" db:"admin_commission_amount"`
	CompanyPayout        decimal.NullDecimal  `json:"company_payout_amount" db:"company_payout_amount"`
	CommissionPaidAt     *time.Time           `json:"commission_paid_at,omitempty" db:"commission_paid_at"`

	// Version is bumped on every persisted transition
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy that shares no mutable state with r
func (r ServiceRequest) Clone() ServiceRequest {
	out := r
	if r.CompletionPhotos != nil {
		out.CompletionPhotos = append(pq.StringArray(nil), r.CompletionPhotos...)
	}
	return out
}

// CreateServiceRequestRequest is the household create form
type CreateServiceRequestRequest struct {
	WasteType     string  `json:"waste_type" binding:"required,max=255"`
	Description   *string `json:"description" binding:"omitempty,max=1000"`
	Quantity      *string `json:"quantity" binding:"omitempty,max=255"`
	PreferredDate string  `json:"preferred_date" binding:"required"`
	PreferredTime string  `json:"preferred_time" binding:"required"`
	ClientNumber  string  `json:"client_number" binding:"required"`
	Address       string  `json:"address" binding:"required,max=255"`
}

// ServiceRequestFilter scopes list queries. Nil scopes are not applied.
type ServiceRequestFilter struct {
	HouseholdID    *uuid.UUID
	CompanyUserID  *uuid.UUID
	Status         *ServiceRequestStatus
	ExcludePending bool
	Limit          int
	Offset         int
}

// ActionDefaults pre-fills an action form from values already on the request.
// The action payload must still carry them.
type ActionDefaults struct {
	ScheduledDate *string          `json:"scheduled_date,omitempty"`
	ScheduledTime *string          `json:"scheduled_time,omitempty"`
	FinalAmount   *decimal.Decimal `json:"final_amount,omitempty"`
}

// ServiceRequestView is a request as shown to a specific actor
type ServiceRequestView struct {
	ServiceRequest
	Payment        *Payment                  `json:"payment,omitempty"`
	AllowedActions []string                  `json:"allowed_actions"`
	ActionDefaults map[string]ActionDefaults `json:"action_defaults,omitempty"`
}

// ActionSet lists the actions an actor may take on one request
type ActionSet struct {
	ServiceRequestID uuid.UUID                 `json:"service_request_id"`
	AllowedActions   []string                  `json:"allowed_actions"`
	Defaults         map[string]ActionDefaults `json:"defaults,omitempty"`
}

// SettlementRow is one line of the settlement export
type SettlementRow struct {
	ServiceRequestID     uuid.UUID           `db:"id"`
	WasteType            string              `db:"waste_type"`
	CompanyName          *string             `db:"company_name"`
	CompletedAt          *time.Time          `db:"completed_at"`
	FinalAmount          decimal.NullDecimal `db:"final_amount"`
	PaymentMethod        *string             `db:"payment_method"`
	PaymentState         *string             `db:"payment_state"`
	PaidAt               *time.Time          `db:"paid_at"`
	CommissionPercentage decimal.NullDecimal `db:"admin_commission_percentage"`
	CommissionAmount     decimal.NullDecimal `db:"admin_commission_amount"`
	CompanyPayout        decimal.NullDecimal `db:"company_payout_amount"`
	CommissionPaidAt     *time.Time          `db:"commission_paid_at"`
}
