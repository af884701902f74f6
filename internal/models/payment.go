package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a household payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentMethod is how the household says it will pay
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid reports whether m is an accepted payment method
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodBankTransfer
}

// Payment records the household's payment for a completed request.
// At most one exists per service request.
type Payment struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	ServiceRequestID uuid.UUID       `json:"service_request_id" db:"service_request_id"`
	PaymentMethod    PaymentMethod   `json:"payment_method" db:"payment_method"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Status           PaymentStatus   `json:"status" db:"status"`
	PaidAt           *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the payment awaits admin confirmation
func (p *Payment) IsPending() bool {
	return p != nil && p.Status == PaymentStatusPending
}

// IsConfirmed reports whether the payment was confirmed by an admin
func (p *Payment) IsConfirmed() bool {
	return p != nil && p.Status == PaymentStatusConfirmed
}

// Clone returns a copy of the payment, or nil
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}
