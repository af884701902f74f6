package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
)

// ErrStaleRecord means the request changed between read and write
var ErrStaleRecord = errors.New("service request was modified concurrently")

const serviceRequestColumns = `
	id, household_id, company_id, company_user_id,
	waste_type, description, quantity, preferred_date, preferred_time, client_number, address,
	status, scheduled_date, scheduled_time, company_notes, estimated_duration, estimated_cost,
	started_at, completed_at, final_amount, completion_notes, completion_photos,
	payment_status, payment_received_at,
	admin_commission_percentage, admin_commission_amount, company_payout_amount, commission_paid_at,
	version, created_at, updated_at`

// ServiceRequestRepository handles service request database operations
type ServiceRequestRepository struct {
	db DB
}

// NewServiceRequestRepository creates a new service request repository
func NewServiceRequestRepository(db DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

// Create inserts a new pending request
func (r *ServiceRequestRepository) Create(ctx context.Context, req *models.ServiceRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = models.ServiceRequestStatusPending
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = models.RequestPaymentStatusPending
	}
	req.Version = 1

	query := `
		INSERT INTO service_requests (
			id, household_id, waste_type, description, quantity,
			preferred_date, preferred_time, client_number, address,
			status, payment_status, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.HouseholdID, req.WasteType, req.Description, req.Quantity,
		req.PreferredDate, req.PreferredTime, req.ClientNumber, req.Address,
		req.Status, req.PaymentStatus, req.Version,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create service request: %w", err)
	}

	return nil
}

// GetByID returns the request or nil when it does not exist
func (r *ServiceRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	query := `SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &req, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get service request: %w", err)
	}

	return &req, nil
}

// List returns requests matching the filter, newest first
func (r *ServiceRequestRepository) List(ctx context.Context, filter models.ServiceRequestFilter) ([]models.ServiceRequest, error) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.HouseholdID != nil {
		add("household_id = $%d", *filter.HouseholdID)
	}
	if filter.CompanyUserID != nil {
		add("company_user_id = $%d", *filter.CompanyUserID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.ExcludePending {
		conditions = append(conditions, "status <> 'pending'")
	}

	query := `SELECT ` + serviceRequestColumns + ` FROM service_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	requests := []models.ServiceRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list service requests: %w", err)
	}

	return requests, nil
}

// CountByStatus returns the number of requests in each status
func (r *ServiceRequestRepository) CountByStatus(ctx context.Context) (map[models.ServiceRequestStatus]int64, error) {
	var rows []struct {
		Status models.ServiceRequestStatus `db:"status"`
		Count  int64                       `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM service_requests GROUP BY status`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count service requests: %w", err)
	}

	counts := make(map[models.ServiceRequestStatus]int64, len(models.AllServiceRequestStatuses))
	for _, s := range models.AllServiceRequestStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ListStaleAssignments returns requests assigned before cutoff that no company accepted
func (r *ServiceRequestRepository) ListStaleAssignments(ctx context.Context, cutoff time.Time) ([]models.ServiceRequest, error) {
	query := `SELECT ` + serviceRequestColumns + `
		FROM service_requests
		WHERE status = 'assigned' AND updated_at < $1
		ORDER BY updated_at ASC`

	requests := []models.ServiceRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale assignments: %w", err)
	}
	return requests, nil
}

// ListSettlements returns completed requests in [from, to) with their payment and commission state
func (r *ServiceRequestRepository) ListSettlements(ctx context.Context, from, to time.Time) ([]models.SettlementRow, error) {
	query := `
		SELECT sr.id, sr.waste_type, c.company_name, sr.completed_at, sr.final_amount,
		       p.payment_method, p.status AS payment_state, p.paid_at,
		       sr.admin_commission_percentage, sr.admin_commission_amount,
		       sr.company_payout_amount, sr.commission_paid_at
		FROM service_requests sr
		LEFT JOIN companies c ON c.id = sr.company_id
		LEFT JOIN payments p ON p.service_request_id = sr.id
		WHERE sr.status = 'completed'
		  AND sr.completed_at >= $1 AND sr.completed_at < $2
		ORDER BY sr.completed_at ASC`

	rows := []models.SettlementRow{}
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return rows, nil
}

// SettlementTotals sums processed commissions and company payouts
func (r *ServiceRequestRepository) SettlementTotals(ctx context.Context) (commission, payouts decimal.Decimal, err error) {
	var totals struct {
		Commission decimal.Decimal `db:"commission"`
		Payouts    decimal.Decimal `db:"payouts"`
	}
	query := `
		SELECT COALESCE(SUM(admin_commission_amount), 0) AS commission,
		       COALESCE(SUM(company_payout_amount), 0) AS payouts
		FROM service_requests
		WHERE commission_paid_at IS NOT NULL`

	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum settlements: %w", err)
	}
	return totals.Commission, totals.Payouts, nil
}

// TransitionWrite is the complete result of one lifecycle action
type TransitionWrite struct {
	Request         *models.ServiceRequest
	ExpectedStatus  models.ServiceRequestStatus
	ExpectedVersion int64
	Payment         *models.Payment
	CreatePayment   bool
	ConfirmPayment  bool
}

// SaveTransition persists a transition atomically. The request row is only
// updated if it still has the expected status and version; otherwise nothing
// is written and ErrStaleRecord is returned.
func (r *ServiceRequestRepository) SaveTransition(ctx context.Context, w *TransitionWrite) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	req := w.Request
	query := `
		UPDATE service_requests SET
			company_id = $4, company_user_id = $5, status = $6,
			scheduled_date = $7, scheduled_time = $8, company_notes = $9,
			estimated_duration = $10, estimated_cost = $11,
			started_at = $12, completed_at = $13, final_amount = $14,
			completion_notes = $15, completion_photos = $16,
			payment_status = $17, payment_received_at = $18,
			admin_commission_percentage = $19, admin_commission_amount = $20,
			company_payout_amount = $21, commission_paid_at = $22,
			updated_at = $23, version = version + 1
		WHERE id = $1 AND status = $2 AND version = $3`

	result, err := tx.ExecContext(ctx, query,
		req.ID, w.ExpectedStatus, w.ExpectedVersion,
		req.CompanyID, req.CompanyUserID, req.Status,
		req.ScheduledDate, req.ScheduledTime, req.CompanyNotes,
		req.EstimatedDuration, req.EstimatedCost,
		req.StartedAt, req.CompletedAt, req.FinalAmount,
		req.CompletionNotes, req.CompletionPhotos,
		req.PaymentStatus, req.PaymentReceivedAt,
		req.CommissionPercentage, req.CommissionAmount,
		req.CompanyPayout, req.CommissionPaidAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update service request: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if w.CreatePayment && w.Payment != nil {
		p := w.Payment
		result, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, service_request_id, payment_method, amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (service_request_id) DO NOTHING`,
			p.ID, p.ServiceRequestID, p.PaymentMethod, p.Amount, p.Status, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if err := expectOneRow(result); err != nil {
			return err
		}
	}

	if w.ConfirmPayment && w.Payment != nil {
		p := w.Payment
		result, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = $2, paid_at = $3, updated_at = $3
			WHERE id = $1 AND status = 'pending'`,
			p.ID, p.Status, p.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("failed to confirm payment: %w", err)
		}
		if err := expectOneRow(result); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	req.Version = w.ExpectedVersion + 1
	return nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows != 1 {
		return ErrStaleRecord
	}
	return nil
}
