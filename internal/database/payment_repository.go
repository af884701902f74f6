package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
)

const paymentColumns = `id, service_request_id, payment_method, amount, status, paid_at, created_at, updated_at`

// PaymentRepository reads payments. Writes go through ServiceRequestRepository.SaveTransition.
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetByServiceRequestID returns the request's payment or nil
func (r *PaymentRepository) GetByServiceRequestID(ctx context.Context, requestID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE service_request_id = $1`

	if err := r.db.GetContext(ctx, &p, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// ListPendingOlderThan returns payments awaiting confirmation since before cutoff
func (r *PaymentRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC`

	payments := []models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return payments, nil
}

// CountByStatus counts payments in status
func (r *PaymentRepository) CountByStatus(ctx context.Context, status models.PaymentStatus) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payments WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}
