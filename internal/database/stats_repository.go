package database

import (
	"context"
	"time"

	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
)

// StatsRepository groups the aggregate and sweep reads used by the
// dashboard and the cron jobs
type StatsRepository struct {
	requests  *ServiceRequestRepository
	companies *CompanyRepository
	payments  *PaymentRepository
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db DB) *StatsRepository {
	return &StatsRepository{
		requests:  NewServiceRequestRepository(db),
		companies: NewCompanyRepository(db),
		payments:  NewPaymentRepository(db),
	}
}

func (r *StatsRepository) CountRequestsByStatus(ctx context.Context) (map[models.ServiceRequestStatus]int64, error) {
	return r.requests.CountByStatus(ctx)
}

func (r *StatsRepository) CountCompaniesByVerificationStatus(ctx context.Context) (map[models.VerificationStatus]int64, error) {
	return r.companies.CountByVerificationStatus(ctx)
}

func (r *StatsRepository) CountPendingPayments(ctx context.Context) (int64, error) {
	return r.payments.CountByStatus(ctx, models.PaymentStatusPending)
}

func (r *StatsRepository) SettlementTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return r.requests.SettlementTotals(ctx)
}

func (r *StatsRepository) ListStaleAssignments(ctx context.Context, cutoff time.Time) ([]models.ServiceRequest, error) {
	return r.requests.ListStaleAssignments(ctx, cutoff)
}

func (r *StatsRepository) ListPendingPaymentsOlderThan(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	return r.payments.ListPendingOlderThan(ctx, cutoff)
}
