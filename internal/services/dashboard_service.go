package services

import (
	"context"

	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/shopspring/decimal"
)

// StatsSource is the read side the dashboard and metrics jobs aggregate
type StatsSource interface {
	CountRequestsByStatus(ctx context.Context) (map[models.ServiceRequestStatus]int64, error)
	CountCompaniesByVerificationStatus(ctx context.Context) (map[models.VerificationStatus]int64, error)
	CountPendingPayments(ctx context.Context) (int64, error)
	SettlementTotals(ctx context.Context) (commission, payouts decimal.Decimal, err error)
}

// DashboardService backs the admin dashboard
type DashboardService struct {
	stats    StatsSource
	currency string
}

// NewDashboardService creates a dashboard service
func NewDashboardService(stats StatsSource, currency string) *DashboardService {
	return &DashboardService{stats: stats, currency: currency}
}

// GetStats returns request, company, payment and settlement aggregates
func (s *DashboardService) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	requests, err := s.stats.CountRequestsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.stats.CountCompaniesByVerificationStatus(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.stats.CountPendingPayments(ctx)
	if err != nil {
		return nil, err
	}
	commission, payouts, err := s.stats.SettlementTotals(ctx)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		RequestsByStatus:    requests,
		CompaniesByStatus:   companies,
		PendingPayments:     pending,
		CommissionCollected: commission.StringFixed(2),
		PayoutsOwed:         payouts.StringFixed(2),
		Currency:            s.currency,
	}, nil
}
